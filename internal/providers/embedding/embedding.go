package embedding

import "context"

// Embedder converts text into fixed-dimension float vectors.
type Embedder interface {
	// EmbedTexts embeds every input, preserving order. Inputs are batched
	// internally; callers see one flat result.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions reports the vector width this embedder produces.
	Dimensions() int
}
