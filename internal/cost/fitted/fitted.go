// Package fitted 提供拟合模型的通用载体。
// 滑点模型与 Maker/Taker 模型共用：不透明系数集 + 元数据
// （特征顺序、训练时间），加载后不可变，重载时整体原子交换。
package fitted

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var (
	// ErrFeatureShapeMismatch 特征向量的数量/顺序与模型训练期 schema 不符
	// 过期或错配的模型是静默腐蚀风险，必须显式检查而非假设一致
	ErrFeatureShapeMismatch = errors.New("特征形状与模型 schema 不匹配")
	// ErrModelLoad 模型文件加载失败（不存在、损坏或校验不通过）
	ErrModelLoad = errors.New("模型加载失败")
)

// Coefficients 拟合模型系数集 + 元数据
// 加载后不可变；重载通过原子指针交换整体替换，绝不就地修改。
type Coefficients struct {
	// Intercept 截距项
	Intercept float64 `json:"intercept"`
	// Features 训练期特征顺序（名称列表）
	Features []string `json:"features"`
	// Weights 与 Features 一一对应的权重
	Weights []float64 `json:"weights"`
	// TrainedAt 训练时间（ISO-8601，可选）
	TrainedAt string `json:"trained_at,omitempty"`
}

// Validate 校验系数集自身的一致性
// 特征与权重数量不一致或特征名重复时返回 ErrFeatureShapeMismatch。
func (c *Coefficients) Validate() error {
	if len(c.Features) == 0 {
		return fmt.Errorf("%w: 特征列表为空", ErrFeatureShapeMismatch)
	}
	if len(c.Features) != len(c.Weights) {
		return fmt.Errorf("%w: 特征 %d 个但权重 %d 个", ErrFeatureShapeMismatch, len(c.Features), len(c.Weights))
	}
	seen := make(map[string]struct{}, len(c.Features))
	for _, name := range c.Features {
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: 特征名 '%s' 重复", ErrFeatureShapeMismatch, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Resolver 按名称解析一个特征输入值
// 返回 false 表示无法提供该名称对应的值。
type Resolver func(name string) (float64, bool)

// Score 计算线性得分 intercept + Σ w_i × x_i
// 任一特征名无法解析时返回 ErrFeatureShapeMismatch —— 这是
// 模型 schema 与当前特征向量错配的信号，不得用默认值顶替。
func (c *Coefficients) Score(resolve Resolver) (float64, error) {
	score := c.Intercept
	for i, name := range c.Features {
		v, ok := resolve(name)
		if !ok {
			return 0, fmt.Errorf("%w: 未知特征 '%s'", ErrFeatureShapeMismatch, name)
		}
		score += c.Weights[i] * v
	}
	return score, nil
}

// LoadFile 从 JSON 系数文件加载模型
// 半写状态的文件会在解析或校验阶段失败，绝不会被当作有效模型。
// 返回: 校验通过的系数集；失败时返回 ErrModelLoad
func LoadFile(path string) (Coefficients, error) {
	var c Coefficients

	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("%w: 读取 %s: %v", ErrModelLoad, path, err)
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("%w: 解析 %s: %v", ErrModelLoad, path, err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("%w: 校验 %s: %v", ErrModelLoad, path, err)
	}
	return c, nil
}

// SaveFile 将系数集序列化为 JSON 文件
// 原子写（先写临时文件再改名）由调用方负责；本函数只保证
// 序列化内容完整。
func SaveFile(path string, c Coefficients) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(&c, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化系数失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写入系数文件失败: %w", err)
	}
	return nil
}
