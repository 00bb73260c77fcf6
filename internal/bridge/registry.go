package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/tool"
)

// ToolSpec 对外暴露的工具描述
type ToolSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`

	raw []byte
}

// RawSchema 入参的 JSON Schema 原文
func (s ToolSpec) RawSchema() []byte {
	return s.raw
}

// Registry 工具表，同时接受 qq.xxx 和裸名 xxx
type Registry struct {
	order []string
	tools map[string]tool.InvokableTool
	specs map[string]ToolSpec
}

// NewRegistry 从 eino 工具构建注册表，schema 由入参结构体推断
func NewRegistry(ctx context.Context, all []tool.InvokableTool) (*Registry, error) {
	r := &Registry{
		tools: make(map[string]tool.InvokableTool, len(all)),
		specs: make(map[string]ToolSpec, len(all)),
	}
	for _, t := range all {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("读取工具信息失败: %w", err)
		}
		if _, dup := r.tools[info.Name]; dup {
			return nil, fmt.Errorf("工具重复注册: %s", info.Name)
		}

		spec := ToolSpec{Name: info.Name, Description: info.Desc}
		spec.raw = []byte(`{"type":"object","properties":{}}`)
		if info.ParamsOneOf != nil {
			js, err := info.ParamsOneOf.ToJSONSchema()
			if err != nil {
				return nil, fmt.Errorf("生成工具 %s 的 schema 失败: %w", info.Name, err)
			}
			if js != nil {
				if spec.raw, err = sonic.Marshal(js); err != nil {
					return nil, fmt.Errorf("序列化工具 %s 的 schema 失败: %w", info.Name, err)
				}
			}
		}
		if err := sonic.Unmarshal(spec.raw, &spec.InputSchema); err != nil {
			return nil, fmt.Errorf("解析工具 %s 的 schema 失败: %w", info.Name, err)
		}

		r.order = append(r.order, info.Name)
		r.tools[info.Name] = t
		r.specs[info.Name] = spec
	}
	return r, nil
}

// Canonical 规范化工具名
func (r *Registry) Canonical(name string) (string, bool) {
	if _, ok := r.tools[name]; ok {
		return name, true
	}
	if !strings.HasPrefix(name, namespace) {
		if _, ok := r.tools[namespace+name]; ok {
			return namespace + name, true
		}
	}
	return "", false
}

// Lookup 按名字查找工具
func (r *Registry) Lookup(name string) (tool.InvokableTool, bool) {
	canonical, ok := r.Canonical(name)
	if !ok {
		return nil, false
	}
	return r.tools[canonical], true
}

// Specs 按注册顺序返回工具描述
func (r *Registry) Specs() []ToolSpec {
	out := make([]ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.specs[name])
	}
	return out
}
