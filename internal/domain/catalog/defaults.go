package catalog

// Built-in index keys.
const (
	KeyVisualRichness       = "science.visual_richness"
	KeyOrganizedComplexity  = "science.organized_complexity"
	KeyRestorativeH1        = "affect.restorative_h1"
	KeyCognitiveCoherence   = "cognitive.coherence"
	KeyCognitiveComplexity  = "cognitive.complexity"
	KeyCognitiveLegibility  = "cognitive.legibility"
	KeyCognitiveMystery     = "cognitive.mystery"
	KeyCognitiveRestoration = "cognitive.restoration"
	KeyAffectCozy           = "affect.cozy"
	KeyAffectWelcoming      = "affect.welcoming"
	KeyAffectTranquil       = "affect.tranquil"
	KeyAffectScary          = "affect.scary"
	KeyAffectJarring        = "affect.jarring"
)

// Entry tags.
const (
	TagComposite = "composite"
	TagHeuristic = "heuristic"
	TagVLM       = "vlm"
)

const (
	binFieldSuffix           = "_bin"
	defaultVLMDimensionLabel = "VLM dimension"
)

// VLMDimensions lists the cognitive and affective keys scored by the VLM.
var VLMDimensions = []string{
	KeyCognitiveCoherence,
	KeyCognitiveComplexity,
	KeyCognitiveLegibility,
	KeyCognitiveMystery,
	KeyCognitiveRestoration,
	KeyAffectCozy,
	KeyAffectWelcoming,
	KeyAffectTranquil,
	KeyAffectScary,
	KeyAffectJarring,
}

var vlmLabels = map[string]string{
	KeyCognitiveCoherence:   "Coherence",
	KeyCognitiveComplexity:  "Perceived complexity",
	KeyCognitiveLegibility:  "Legibility",
	KeyCognitiveMystery:     "Mystery",
	KeyCognitiveRestoration: "Restoration",
	KeyAffectCozy:           "Cozy",
	KeyAffectWelcoming:      "Welcoming",
	KeyAffectTranquil:       "Tranquil",
	KeyAffectScary:          "Scary",
	KeyAffectJarring:        "Jarring",
}

// levels returns a low/mid/high spec; Register fills in the thresholds.
func levels(key string) *BinSpec {
	return &BinSpec{Field: key + binFieldSuffix, Values: []string{BinLow, BinMid, BinHigh}}
}

func builtinEntries() []Entry {
	entries := []Entry{
		{
			Key:              KeyVisualRichness,
			Label:            "Visual richness",
			Description:      "Composite index combining color, texture and complexity measurements.",
			Type:             TypeFloat,
			Bins:             levels(KeyVisualRichness),
			Tags:             []string{TagComposite},
			CandidateBNInput: true,
		},
		{
			Key:              KeyOrganizedComplexity,
			Label:            "Organized complexity",
			Description:      "Composite index combining complexity measurements with fractal dimension.",
			Type:             TypeFloat,
			Bins:             levels(KeyOrganizedComplexity),
			Tags:             []string{TagComposite},
			CandidateBNInput: true,
		},
		{
			Key:   KeyRestorativeH1,
			Label: "Restorativeness (H1 heuristic)",
			Description: "Heuristic combining natural material ratio, mid-level spatial entropy, " +
				"low clutter and low processing load. Uncalibrated.",
			Type:             TypeFloat,
			Bins:             levels(KeyRestorativeH1),
			Tags:             []string{TagComposite, TagHeuristic},
			CandidateBNInput: true,
		},
	}
	for _, k := range VLMDimensions {
		label := vlmLabels[k]
		if label == "" {
			label = defaultVLMDimensionLabel
		}
		entries = append(entries, Entry{
			Key:              k,
			Label:            label,
			Description:      "VLM-scored dimension in [0,1], passed through from the producer.",
			Type:             TypeFloat,
			Bins:             levels(k),
			Tags:             []string{TagVLM},
			CandidateBNInput: true,
		})
	}
	return entries
}
