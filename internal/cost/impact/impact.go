// Package impact 实现 Almgren-Chriss 风格的市场冲击模型。
// 以参与率 p = 订单规模 / 日均成交量为驱动：
//
//	temporary_impact = eta  × volatility × p^beta   （执行完成后衰减）
//	permanent_impact = gamma × volatility × p^alpha （执行后持续存在）
//
// 两项合计以中间价百分比表示。三个计算方法均为纯函数，
// 参数集通过原子交换整体替换。
package impact

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"sync/atomic"

	"okx-trade-simulator/internal/util/fastparse"
)

var (
	// ErrInvalidParameters alpha/beta/gamma/eta 存在非正值
	ErrInvalidParameters = errors.New("冲击模型参数非法")
	// ErrInvalidInputs 波动率/日均成交量/中间价为非正值
	ErrInvalidInputs = errors.New("冲击模型输入非法")
	// ErrModelLoad 参数文件加载失败
	ErrModelLoad = errors.New("冲击参数文件加载失败")
)

// Basis 参与率基准
// 参与率的分母口径是显式配置项而非推断：接口层面无法从
// avg_daily_volume 数值本身区分 USD 名义还是基础资产数量。
type Basis string

const (
	// BasisUSD avg_daily_volume 按 USD 名义理解（默认）
	BasisUSD Basis = "usd"
	// BasisBase avg_daily_volume 按基础资产数量理解，
	// 订单名义先除以中间价换算为基础资产
	BasisBase Basis = "base"
)

// Parameters Almgren-Chriss 参数集，全部为正实数
type Parameters struct {
	// Alpha 永久冲击的参与率指数
	Alpha float64
	// Beta 暂时冲击的参与率指数（凸/凹性旋钮）
	Beta float64
	// Gamma 永久冲击系数
	Gamma float64
	// Eta 暂时冲击系数
	Eta float64
}

// DefaultParameters 缺省参数
// 取文献常用标定：永久项近似线性（alpha=1），暂时项 beta=0.6。
func DefaultParameters() Parameters {
	return Parameters{Alpha: 1.0, Beta: 0.6, Gamma: 0.314, Eta: 0.142}
}

// Validate 校验参数集
// 任一参数非正即返回 ErrInvalidParameters。
func (p Parameters) Validate() error {
	if p.Alpha <= 0 || p.Beta <= 0 || p.Gamma <= 0 || p.Eta <= 0 {
		return fmt.Errorf("%w: alpha=%g beta=%g gamma=%g eta=%g，均须为正",
			ErrInvalidParameters, p.Alpha, p.Beta, p.Gamma, p.Eta)
	}
	return nil
}

// Result 冲击计算结果（单位均为中间价百分比）
type Result struct {
	// TemporaryPct 暂时冲击
	TemporaryPct float64
	// PermanentPct 永久冲击
	PermanentPct float64
	// TotalPct 合计冲击
	TotalPct float64
}

// Model 市场冲击模型
// 参数集不可变，SetParameters 整体原子交换。
type Model struct {
	params atomic.Pointer[Parameters]
	basis  Basis
}

// New 创建冲击模型
// 参数 p: 拟合好的参数集
// 参数 basis: 参与率基准（空值按 BasisUSD 处理）
func New(p Parameters, basis Basis) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	switch basis {
	case "":
		basis = BasisUSD
	case BasisUSD, BasisBase:
	default:
		return nil, fmt.Errorf("%w: 未知参与率基准 '%s'", ErrInvalidParameters, basis)
	}
	m := &Model{basis: basis}
	m.params.Store(&p)
	return m, nil
}

// SetParameters 原子替换参数集
// 校验失败时旧参数保持生效。
func (m *Model) SetParameters(p Parameters) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.params.Store(&p)
	return nil
}

// GetParameters 获取当前参数集快照
func (m *Model) GetParameters() Parameters {
	return *m.params.Load()
}

// Basis 获取参与率基准
func (m *Model) Basis() Basis {
	return m.basis
}

// participationRate 计算参与率
// BasisUSD: p = quantityUSD / advUSD
// BasisBase: p = (quantityUSD/midPrice) / advBase
func (m *Model) participationRate(quantityUSD, avgDailyVolume, midPrice float64) (float64, error) {
	if quantityUSD <= 0 || avgDailyVolume <= 0 || midPrice <= 0 {
		return 0, fmt.Errorf("%w: quantity=%g adv=%g mid=%g，均须为正",
			ErrInvalidInputs, quantityUSD, avgDailyVolume, midPrice)
	}
	if m.basis == BasisBase {
		return (quantityUSD / midPrice) / avgDailyVolume, nil
	}
	return quantityUSD / avgDailyVolume, nil
}

// TemporaryImpact 暂时冲击（中间价百分比）
// 公式: eta × volatility × p^beta
func (m *Model) TemporaryImpact(quantityUSD, volatility, avgDailyVolume, midPrice float64) (float64, error) {
	if volatility <= 0 {
		return 0, fmt.Errorf("%w: volatility=%g 须为正", ErrInvalidInputs, volatility)
	}
	p, err := m.participationRate(quantityUSD, avgDailyVolume, midPrice)
	if err != nil {
		return 0, err
	}
	params := m.params.Load()
	return params.Eta * volatility * math.Pow(p, params.Beta) * 100, nil
}

// PermanentImpact 永久冲击（中间价百分比）
// 公式: gamma × volatility × p^alpha
func (m *Model) PermanentImpact(quantityUSD, volatility, avgDailyVolume, midPrice float64) (float64, error) {
	if volatility <= 0 {
		return 0, fmt.Errorf("%w: volatility=%g 须为正", ErrInvalidInputs, volatility)
	}
	p, err := m.participationRate(quantityUSD, avgDailyVolume, midPrice)
	if err != nil {
		return 0, err
	}
	params := m.params.Load()
	return params.Gamma * volatility * math.Pow(p, params.Alpha) * 100, nil
}

// CalculateImpact 暂时+永久合计冲击
// 两项共用同一份参数快照，避免计算中途参数被交换造成混合。
func (m *Model) CalculateImpact(quantityUSD, volatility, avgDailyVolume, midPrice float64) (Result, error) {
	var out Result

	if volatility <= 0 {
		return out, fmt.Errorf("%w: volatility=%g 须为正", ErrInvalidInputs, volatility)
	}
	p, err := m.participationRate(quantityUSD, avgDailyVolume, midPrice)
	if err != nil {
		return out, err
	}

	params := m.params.Load()
	out.TemporaryPct = params.Eta * volatility * math.Pow(p, params.Beta) * 100
	out.PermanentPct = params.Gamma * volatility * math.Pow(p, params.Alpha) * 100
	out.TotalPct = out.TemporaryPct + out.PermanentPct
	return out, nil
}

// LoadFile 从 key=value 参数文件加载参数集
// 文件格式每行一项: alpha=1.0 / beta=0.6 / gamma=0.314 / eta=0.142，
// 允许空行与 # 注释；未识别的键按错误拒绝而非忽略。
// 返回: 校验通过的参数集；失败时返回 ErrModelLoad
func LoadFile(path string) (Parameters, error) {
	var p Parameters

	f, err := os.Open(path)
	if err != nil {
		return p, fmt.Errorf("%w: 打开 %s: %v", ErrModelLoad, path, err)
	}
	defer f.Close()

	seen := make(map[string]bool, 4)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, found := strings.Cut(line, "=")
		if !found {
			return p, fmt.Errorf("%w: 行 '%s' 缺少 '='", ErrModelLoad, line)
		}
		key = strings.TrimSpace(key)
		v, err := fastparse.ParseFloat(strings.TrimSpace(val))
		if err != nil {
			return p, fmt.Errorf("%w: 键 '%s' 的值解析失败: %v", ErrModelLoad, key, err)
		}
		switch key {
		case "alpha":
			p.Alpha = v
		case "beta":
			p.Beta = v
		case "gamma":
			p.Gamma = v
		case "eta":
			p.Eta = v
		default:
			return p, fmt.Errorf("%w: 未识别的键 '%s'", ErrModelLoad, key)
		}
		if seen[key] {
			return p, fmt.Errorf("%w: 键 '%s' 重复", ErrModelLoad, key)
		}
		seen[key] = true
	}
	if err := scanner.Err(); err != nil {
		return p, fmt.Errorf("%w: 读取 %s: %v", ErrModelLoad, path, err)
	}

	if len(seen) != 4 {
		return p, fmt.Errorf("%w: 参数不完整，已读到 %d/4 项", ErrModelLoad, len(seen))
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	return p, nil
}

// SaveFile 将参数集写入 key=value 文件
// 数值以最短可往返形式输出，保证 SaveFile 后 LoadFile 得到
// 完全相同的参数集。
func SaveFile(path string, p Parameters) error {
	if err := p.Validate(); err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString("alpha=" + fastparse.FormatFloatShortest(p.Alpha) + "\n")
	sb.WriteString("beta=" + fastparse.FormatFloatShortest(p.Beta) + "\n")
	sb.WriteString("gamma=" + fastparse.FormatFloatShortest(p.Gamma) + "\n")
	sb.WriteString("eta=" + fastparse.FormatFloatShortest(p.Eta) + "\n")

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("写入参数文件失败: %w", err)
	}
	return nil
}
