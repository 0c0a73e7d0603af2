package vectordb

import (
	"fmt"
	"math"
	"sort"
)

// normalizeDistance 未设置或未知的距离类型按余弦处理
func normalizeDistance(distType DistanceType) DistanceType {
	switch distType {
	case Cosine, DotProduct, Euclidean:
		return distType
	default:
		return Cosine
	}
}

// Similarity 计算两个向量间的相似度得分
// 余弦和点积直接返回内积，欧氏距离经高斯衰减转换到(0, 1]
func Similarity(v1, v2 []float32, distType DistanceType) (float32, error) {
	if len(v1) != len(v2) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrInvalidDimension, len(v1), len(v2))
	}

	switch distType {
	case Cosine:
		norm1, norm2 := vectorNorm(v1), vectorNorm(v2)
		if norm1 == 0 || norm2 == 0 {
			return 0, nil
		}
		return dotProduct(v1, v2) / (norm1 * norm2), nil
	case DotProduct:
		return dotProduct(v1, v2), nil
	case Euclidean:
		return L2ToScore(squaredL2(v1, v2)), nil
	default:
		return 0, fmt.Errorf("unsupported distance type: %s", distType)
	}
}

// L2ToScore 把平方欧氏距离转换为得分
func L2ToScore(squared float32) float32 {
	return float32(math.Exp(-math.Sqrt(float64(squared))))
}

// dotProduct 计算两个向量的点积
func dotProduct(v1, v2 []float32) float32 {
	var dot float32
	for i := range v1 {
		dot += v1[i] * v2[i]
	}
	return dot
}

func squaredL2(v1, v2 []float32) float32 {
	var sum float32
	for i := range v1 {
		d := v1[i] - v2[i]
		sum += d * d
	}
	return sum
}

// vectorNorm 计算向量的L2范数
func vectorNorm(v []float32) float32 {
	var sum float32
	for _, val := range v {
		sum += val * val
	}
	return float32(math.Sqrt(float64(sum)))
}

// normalizeVector 归一化向量（使其长度为1），返回新切片
func normalizeVector(v []float32) []float32 {
	norm := vectorNorm(v)
	result := make([]float32, len(v))
	if norm == 0 {
		copy(result, v)
		return result
	}
	for i, val := range v {
		result[i] = val / norm
	}
	return result
}

// sortHits 按得分降序排序，得分相同时保持插入顺序
func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
}

// ValidateVector 验证向量维度和有效性
func ValidateVector(vector []float32, expectedDim int) error {
	if len(vector) == 0 {
		return ErrEmptyVector
	}
	if expectedDim > 0 && len(vector) != expectedDim {
		return fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, expectedDim, len(vector))
	}
	return nil
}
