package backtest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"kosim/internal/cost"
	"kosim/internal/engine"
	"kosim/internal/exec"
	"kosim/internal/metrics"
)

// ScenarioInstrument 声明一个参与回测的标的及其数据来源。
type ScenarioInstrument struct {
	Code   string `json:"code" yaml:"code"`
	Source string `json:"source,omitempty" yaml:"source,omitempty"` // csv | json | binance | cache
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Scenario 是一次回测的完整声明，JSON/YAML 同构。
type Scenario struct {
	Name        string               `json:"name" yaml:"name"`
	InitialCash float64              `json:"initial_cash" yaml:"initial_cash"`
	Start       string               `json:"start,omitempty" yaml:"start,omitempty"` // 2006-01-02
	End         string               `json:"end,omitempty" yaml:"end,omitempty"`
	Strategy    string               `json:"strategy" yaml:"strategy"`
	Params      map[string]int       `json:"params,omitempty" yaml:"params,omitempty"`
	Instruments []ScenarioInstrument `json:"instruments" yaml:"instruments"`

	Cost    cost.Config    `json:"cost,omitempty" yaml:"cost,omitempty"`
	Exec    exec.Config    `json:"exec,omitempty" yaml:"exec,omitempty"`
	Metrics metrics.Config `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

const scenarioSchemaJSON = `{
	"type": "object",
	"required": ["name", "initial_cash", "instruments"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"initial_cash": {"type": "number", "exclusiveMinimum": 0},
		"start": {"type": "string"},
		"end": {"type": "string"},
		"strategy": {"type": "string"},
		"params": {"type": "object", "additionalProperties": {"type": "integer"}},
		"instruments": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["code"],
				"properties": {
					"code": {"type": "string", "minLength": 1},
					"source": {"type": "string", "enum": ["", "csv", "json", "binance", "cache"]},
					"path": {"type": "string"}
				}
			}
		}
	}
}`

var scenarioSchema = mustCompileSchema(scenarioSchemaJSON)

func mustCompileSchema(raw string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("scenario.json", strings.NewReader(raw)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("scenario.json")
}

// ParseScenario 解析并校验 JSON 场景。
func ParseScenario(raw []byte) (Scenario, error) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return Scenario{}, fmt.Errorf("场景不是合法 JSON: %w", err)
	}
	if err := scenarioSchema.Validate(generic); err != nil {
		return Scenario{}, fmt.Errorf("场景校验失败: %w", err)
	}
	var sc Scenario
	if err := json.Unmarshal(raw, &sc); err != nil {
		return Scenario{}, err
	}
	return sc.withDefaults(), nil
}

// ParseScenarioYAML 接受 YAML 场景，经 JSON 走同一套 schema 校验。
func ParseScenarioYAML(raw []byte) (Scenario, error) {
	var node any
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&node); err != nil {
		return Scenario{}, fmt.Errorf("场景不是合法 YAML: %w", err)
	}
	jsonRaw, err := json.Marshal(node)
	if err != nil {
		return Scenario{}, fmt.Errorf("场景 YAML 转 JSON 失败: %w", err)
	}
	return ParseScenario(jsonRaw)
}

func (s Scenario) withDefaults() Scenario {
	if s.Strategy == "" {
		s.Strategy = "buy_hold"
	}
	for i := range s.Instruments {
		if s.Instruments[i].Source == "" {
			if s.Instruments[i].Path != "" {
				s.Instruments[i].Source = "csv"
			} else {
				s.Instruments[i].Source = "cache"
			}
		}
	}
	return s
}

// Validate 做 schema 覆盖不到的语义检查。
func (s Scenario) Validate() error {
	if _, _, err := s.timeRange(); err != nil {
		return err
	}
	for _, inst := range s.Instruments {
		if (inst.Source == "csv" || inst.Source == "json") && inst.Path == "" {
			return fmt.Errorf("标的 %s 使用 %s 数据源但缺少 path", inst.Code, inst.Source)
		}
	}
	return nil
}

func (s Scenario) timeRange() (start, end time.Time, _ error) {
	parse := func(v, field string) (time.Time, error) {
		if v == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, fmt.Errorf("%s 日期格式应为 2006-01-02: %w", field, err)
		}
		return t.UTC(), nil
	}
	var err error
	if start, err = parse(s.Start, "start"); err != nil {
		return start, end, err
	}
	if end, err = parse(s.End, "end"); err != nil {
		return start, end, err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, fmt.Errorf("end 不能早于 start")
	}
	return start, end, nil
}

// EngineParams 把场景翻译成引擎参数。
func (s Scenario) EngineParams() (engine.Params, error) {
	start, end, err := s.timeRange()
	if err != nil {
		return engine.Params{}, err
	}
	return engine.Params{
		InitialCash: s.InitialCash,
		Start:       start,
		End:         end,
		Exec:        s.Exec,
		Cost:        s.Cost,
		Metrics:     s.Metrics,
	}, nil
}
