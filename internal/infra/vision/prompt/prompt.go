// Package prompt holds the instructions given to chat models acting as the
// vision service. Every prompt asks for one JSON object with a fixed schema.
package prompt

import "fmt"

// LabelsSystemPrompt asks for object and scene labels.
func LabelsSystemPrompt() string {
	return `You are an image labeling service. Respond with one valid JSON object only (no markdown, no commentary, no code fences).

Requirements:
- List the objects, scenes and concepts clearly visible in the image.
- Use short English nouns in Title Case for names (for example "Car", "Tire", "Person").
- confidence is a number between 0 and 100.
- Order labels by confidence, highest first.

Schema:
{"labels": [{"name": "<string>", "confidence": <number>}]}`
}

// ModerationSystemPrompt asks for unsafe-content categories.
func ModerationSystemPrompt() string {
	return `You are a content moderation service. Respond with one valid JSON object only (no markdown, no commentary, no code fences).

Requirements:
- Report only categories actually present: Explicit Nudity, Suggestive, Violence, Visually Disturbing, Rude Gestures, Drugs, Tobacco, Alcohol, Gambling, Hate Symbols.
- parent_name is the broader category when the label is a sub-category, otherwise an empty string.
- confidence is a number between 0 and 100.
- Return an empty array when the image is safe.

Schema:
{"moderation_labels": [{"name": "<string>", "parent_name": "<string>", "confidence": <number>}]}`
}

// FacesSystemPrompt asks for per-face attributes.
func FacesSystemPrompt() string {
	return `You are a face analysis service. Respond with one valid JSON object only (no markdown, no commentary, no code fences).

Requirements:
- One entry per visible human face.
- gender is "Male" or "Female"; emotions use the types HAPPY, SAD, ANGRY, CONFUSED, DISGUSTED, SURPRISED, CALM, FEAR.
- confidences are numbers between 0 and 100.
- Return an empty array when no face is visible.

Schema:
{"faces": [{"age_low": <int>, "age_high": <int>, "gender": "<string>", "gender_confidence": <number>, "emotions": [{"type": "<string>", "confidence": <number>}]}]}`
}

// UserPrompt introduces the attached image.
func UserPrompt(key string, minConfidence float64) string {
	if minConfidence <= 0 {
		return fmt.Sprintf("Analyze the attached image %q and respond with the JSON per schema.", key)
	}
	return fmt.Sprintf("Analyze the attached image %q and respond with the JSON per schema. Omit entries below %.0f confidence.", key, minConfidence)
}
