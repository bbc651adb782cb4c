// Package catalogue holds the runtime-catalogue domain model: an immutable,
// seeded-at-install mapping from language id to runtime descriptor.
package catalogue

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RuntimeKey is a closed set of toolchain identifiers the Runner knows how to
// dispatch on.
type RuntimeKey string

const (
	RuntimePython RuntimeKey = "python"
	RuntimeNode   RuntimeKey = "node"
	RuntimeGCC    RuntimeKey = "gcc"
	RuntimeGPP    RuntimeKey = "g++"
	RuntimeJava   RuntimeKey = "java"
	RuntimeGo     RuntimeKey = "go"
	RuntimePHP    RuntimeKey = "php"
	RuntimeRuby   RuntimeKey = "ruby"
)

// Language is the immutable runtime descriptor row. Seeded at install; never
// mutated at runtime.
type Language struct {
	ID                 uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name               string    `gorm:"column:name;not null" json:"name"`
	Runtime            string    `gorm:"column:runtime;not null;index" json:"runtime"`
	Version            string    `gorm:"column:version;not null" json:"version"`
	FileName           string    `gorm:"column:file_name;not null" json:"file_name"`
	CompileCmdTemplate string    `gorm:"column:compile_cmd_template" json:"compile_cmd_template,omitempty"`
	RunCmdTemplate     string    `gorm:"column:run_cmd_template;not null" json:"run_cmd_template"`
	DefaultTimeLimitMs int       `gorm:"column:default_time_limit_ms;not null" json:"default_time_limit_ms"`
	DefaultMemoryMB    int       `gorm:"column:default_memory_mb;not null" json:"default_memory_mb"`
	TemplateCode       string    `gorm:"column:template_code;type:text" json:"template_code,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Language) TableName() string { return "languages" }

// BeforeCreate assigns an id when the caller hasn't already pinned one. The
// seed loader does not pin ids; it matches existing rows by runtime key.
func (l *Language) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// RunCommand splits the descriptor's run template into argv on spaces. No
// placeholders are substituted; the template names the source file literally.
func (l *Language) RunCommand() []string {
	return splitTemplate(l.RunCmdTemplate)
}

// CompileCommand splits the compile template, or returns nil when the runtime
// needs no compile step.
func (l *Language) CompileCommand() []string {
	if l.CompileCmdTemplate == "" {
		return nil
	}
	return splitTemplate(l.CompileCmdTemplate)
}

func (l *Language) RequiresCompile() bool {
	return l.CompileCmdTemplate != ""
}

func splitTemplate(tmpl string) []string {
	var out []string
	var cur []rune
	for _, r := range tmpl {
		if r == ' ' {
			if len(cur) > 0 {
				out = append(out, string(cur))
				cur = cur[:0]
			}
			continue
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		out = append(out, string(cur))
	}
	return out
}
