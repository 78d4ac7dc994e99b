package service

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Upload 上传的文件
type Upload struct {
	Filename string
	Data     []byte
}

// PostForm 创建/编辑帖子的输入
type PostForm struct {
	Text    string  `validate:"required"`
	GroupID string  `validate:"omitempty,max=36"`
	Image   *Upload `validate:"-"`
}

// CommentForm 评论输入
type CommentForm struct {
	Text string `validate:"required"`
}

func (f *PostForm) normalize() {
	f.Text = strings.TrimSpace(f.Text)
	f.GroupID = strings.TrimSpace(f.GroupID)
}

func (f *CommentForm) normalize() {
	f.Text = strings.TrimSpace(f.Text)
}

// validateStruct 运行 validator，字段错误转成 ValidationError
func validateStruct(v interface{}) *ValidationError {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return NewValidationError("form", err.Error())
	}
	out := &ValidationError{}
	for _, fe := range fieldErrs {
		out.Add(strings.ToLower(fe.Field()), fieldMessage(fe))
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "max":
		return "value is too long"
	default:
		return "invalid value"
	}
}

// sniffImage 校验上传内容确实是图片，返回 content type 与扩展名
func sniffImage(u *Upload) (contentType, ext string, ok bool) {
	if u == nil || len(u.Data) == 0 {
		return "", "", false
	}
	contentType = http.DetectContentType(u.Data)
	if !strings.HasPrefix(contentType, "image/") {
		return contentType, "", false
	}
	ext = strings.ToLower(filepath.Ext(u.Filename))
	if ext == "" {
		ext = "." + strings.TrimPrefix(contentType, "image/")
	}
	return contentType, ext, true
}
