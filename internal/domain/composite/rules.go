package composite

import "github.com/Tag-UCSD/image-tagger/internal/domain/catalog"

// Raw feature keys read by the built-in rules.
const (
	KeyNaturalMaterialRatio = "cnfa.biophilic.natural_material_ratio"
	KeySpatialEntropy       = "cnfa.fluency.visual_entropy_spatial"
	KeyClutterDensity       = "cnfa.fluency.clutter_density_count"
	KeyProcessingLoad       = "cnfa.fluency.processing_load_proxy"

	KeyColorLabVolume         = "color.lab_volume"
	KeyColorWarmthRatio       = "color.warmth_ratio"
	KeyColorLightnessContrast = "color.lightness_contrast"

	KeyTextureMicroContrast    = "texture.micro.contrast"
	KeyTextureMicroHomogeneity = "texture.micro.homogeneity"
	KeyTextureMacroContrast    = "texture.macro.contrast"
	KeyTextureMacroHomogeneity = "texture.macro.homogeneity"

	KeyComplexityShannon = "complexity.shannon_entropy"
	KeyComplexitySpatial = "complexity.spatial_entropy"
	KeyComplexityEdges   = "complexity.edge_density"

	KeyFractalDimension = "fractal.D"
)

var (
	colorKeys      = []string{KeyColorLabVolume, KeyColorWarmthRatio, KeyColorLightnessContrast}
	textureKeys    = []string{KeyTextureMicroContrast, KeyTextureMicroHomogeneity, KeyTextureMacroContrast, KeyTextureMacroHomogeneity}
	complexityKeys = []string{KeyComplexityShannon, KeyComplexitySpatial, KeyComplexityEdges}
)

// DefaultRules returns the rules for every built-in catalog index.
func DefaultRules() []Rule {
	rules := []Rule{
		{
			Key: catalog.KeyVisualRichness,
			Terms: []Term{
				{Name: "color", Keys: colorKeys, Weight: 1, Shape: Linear},
				{Name: "texture", Keys: textureKeys, Weight: 1, Shape: Linear},
				{Name: "complexity", Keys: complexityKeys, Weight: 1, Shape: Linear},
			},
			MinTerms: 1,
		},
		{
			Key: catalog.KeyOrganizedComplexity,
			Terms: []Term{
				{Name: "complexity", Keys: complexityKeys, Weight: 1, Shape: Linear},
				{Name: "fractal", Keys: []string{KeyFractalDimension}, Weight: 1, Shape: Linear},
			},
			MinTerms: 1,
		},
		{
			Key: catalog.KeyRestorativeH1,
			Terms: []Term{
				{Name: "natural_material", Keys: []string{KeyNaturalMaterialRatio}, Weight: 0.4, Shape: Linear},
				{Name: "spatial_entropy", Keys: []string{KeySpatialEntropy}, Weight: 0.3, Shape: Peaked},
				{Name: "clutter", Keys: []string{KeyClutterDensity}, Weight: 0.15, Shape: Inverse},
				{Name: "processing_load", Keys: []string{KeyProcessingLoad}, Weight: 0.15, Shape: Inverse},
			},
			MinTerms:  2,
			Heuristic: true,
		},
	}
	for _, k := range catalog.VLMDimensions {
		rules = append(rules, Passthrough(k))
	}
	return rules
}

// Passthrough is a single-input rule that reports the feature of the same key.
func Passthrough(key string) Rule {
	return Rule{
		Key:      key,
		Terms:    []Term{{Name: "value", Keys: []string{key}, Weight: 1, Shape: Linear}},
		MinTerms: 1,
	}
}
