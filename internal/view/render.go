package view

import (
	"encoding/json"
	"fmt"

	"github.com/d60-Lab/yatube/pkg/response"
)

// Renderer 把视图模型渲染成响应体
type Renderer interface {
	Render(name string, data interface{}) ([]byte, error)
	ContentType() string
}

// JSONRenderer 输出 response.Response 信封，view 字段携带视图名
type JSONRenderer struct{}

func (JSONRenderer) Render(name string, data interface{}) ([]byte, error) {
	out, err := json.Marshal(response.Response{
		Code:    response.CodeOK,
		Message: "ok",
		View:    name,
		Data:    data,
	})
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return out, nil
}

func (JSONRenderer) ContentType() string { return "application/json; charset=utf-8" }
