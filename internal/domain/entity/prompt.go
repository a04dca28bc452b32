// Package entity 定义领域实体
package entity

import "time"

// DefaultPromptCode 未显式指定提示词时使用的默认编码
const DefaultPromptCode = "PROM-000"

// Prompt 系统提示词模板，按编码检索，携带生成采样参数
type Prompt struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Code        string    `json:"code" gorm:"type:varchar(32);uniqueIndex;not null"`
	Name        string    `json:"name" gorm:"type:varchar(128)"`
	Content     string    `json:"content" gorm:"type:text;not null"`
	Temperature float64   `json:"temperature" gorm:"type:numeric;default:0.7"`
	TopP        float64   `json:"top_p" gorm:"type:numeric;default:1.0"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Prompt) TableName() string {
	return "prompts"
}
