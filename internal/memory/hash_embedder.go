package memory

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// HashEmbedder 生成基于文本哈希的确定性单位向量，不依赖外部服务。
// 只有规范化后完全相同的文本才会相似，适合本地模式与测试。
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder 创建指定维度的哈希向量化实现。
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 768
	}
	return &HashEmbedder{dimensions: dimensions}
}

func (h *HashEmbedder) EmbedDocument(_ context.Context, text string) ([]float32, error) {
	return h.embed(text), nil
}

func (h *HashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, 0, len(texts))
	for _, text := range texts {
		results = append(results, h.embed(text))
	}
	return results, nil
}

func (h *HashEmbedder) embed(text string) []float32 {
	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(normalized))
	seed := hasher.Sum64()

	vec := make([]float32, h.dimensions)
	var norm float64
	for i := range vec {
		// LCG
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float64(int64(seed)) / float64(math.MaxInt64)
		vec[i] = float32(v)
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
