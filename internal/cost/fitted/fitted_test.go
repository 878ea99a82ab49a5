// Package fitted 拟合模型载体测试
package fitted

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestCoefficients_Validate(t *testing.T) {
	ok := Coefficients{Intercept: 0.1, Features: []string{"a", "b"}, Weights: []float64{1, 2}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("合法系数集不应报错: %v", err)
	}

	cases := []struct {
		name string
		c    Coefficients
	}{
		{"特征为空", Coefficients{Weights: []float64{1}}},
		{"数量不一致", Coefficients{Features: []string{"a", "b"}, Weights: []float64{1}}},
		{"特征名重复", Coefficients{Features: []string{"a", "a"}, Weights: []float64{1, 2}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.c.Validate(); !errors.Is(err, ErrFeatureShapeMismatch) {
				t.Fatalf("err=%v, want ErrFeatureShapeMismatch", err)
			}
		})
	}
}

func TestCoefficients_Score(t *testing.T) {
	c := Coefficients{
		Intercept: 1.0,
		Features:  []string{"x", "y"},
		Weights:   []float64{2.0, -0.5},
	}

	values := map[string]float64{"x": 3, "y": 4}
	score, err := c.Score(func(name string) (float64, bool) {
		v, ok := values[name]
		return v, ok
	})
	if err != nil {
		t.Fatalf("Score 失败: %v", err)
	}
	// 1 + 2×3 - 0.5×4 = 5
	if score != 5 {
		t.Fatalf("score=%v, want 5", score)
	}

	// 无法解析的特征名必须显式报错
	_, err = c.Score(func(name string) (float64, bool) {
		if name == "x" {
			return 1, true
		}
		return 0, false
	})
	if !errors.Is(err, ErrFeatureShapeMismatch) {
		t.Fatalf("err=%v, want ErrFeatureShapeMismatch", err)
	}
}

func TestLoadFile_SaveFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")

	want := Coefficients{
		Intercept: 0.01,
		Features:  []string{"spread_pct", "volatility"},
		Weights:   []float64{0.5, 0.3},
		TrainedAt: "2025-05-01T00:00:00Z",
	}
	if err := SaveFile(path, want); err != nil {
		t.Fatalf("SaveFile 失败: %v", err)
	}

	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile 失败: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("往返不一致: got=%+v want=%+v", got, want)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	// 不存在
	if _, err := LoadFile(filepath.Join(dir, "missing.json")); !errors.Is(err, ErrModelLoad) {
		t.Fatalf("err=%v, want ErrModelLoad", err)
	}

	// 半写/损坏的 JSON
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"intercept": 0.1, "features": ["a"`), 0o644); err != nil {
		t.Fatalf("写入测试文件失败: %v", err)
	}
	if _, err := LoadFile(bad); !errors.Is(err, ErrModelLoad) {
		t.Fatalf("err=%v, want ErrModelLoad", err)
	}

	// 结构完整但 schema 不自洽
	mismatch := filepath.Join(dir, "mismatch.json")
	if err := os.WriteFile(mismatch, []byte(`{"intercept": 0.1, "features": ["a", "b"], "weights": [1.0]}`), 0o644); err != nil {
		t.Fatalf("写入测试文件失败: %v", err)
	}
	if _, err := LoadFile(mismatch); !errors.Is(err, ErrModelLoad) {
		t.Fatalf("err=%v, want ErrModelLoad", err)
	}
}
