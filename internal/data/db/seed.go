package db

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	catalogue "github.com/fenwicklabs/coderunner/internal/domain/catalogue"
)

type seedFile struct {
	Languages []seedLanguage `yaml:"languages"`
}

type seedLanguage struct {
	Name               string `yaml:"name"`
	Runtime            string `yaml:"runtime"`
	Version            string `yaml:"version"`
	FileName           string `yaml:"file_name"`
	CompileCmdTemplate string `yaml:"compile_cmd_template"`
	RunCmdTemplate     string `yaml:"run_cmd_template"`
	DefaultTimeLimitMs int    `yaml:"default_time_limit_ms"`
	DefaultMemoryMB    int    `yaml:"default_memory_mb"`
	TemplateCode       string `yaml:"template_code"`
}

// SeedLanguagesFromFile loads the Runtime Catalogue seed file and upserts each
// row by runtime key, so re-running at startup is idempotent. The catalogue
// is seeded at install and never mutated at runtime.
func SeedLanguagesFromFile(gdb *gorm.DB, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read language seed file: %w", err)
	}
	var parsed seedFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("parse language seed file: %w", err)
	}
	for _, sl := range parsed.Languages {
		lang := catalogue.Language{
			Name:               sl.Name,
			Runtime:            sl.Runtime,
			Version:            sl.Version,
			FileName:           sl.FileName,
			CompileCmdTemplate: sl.CompileCmdTemplate,
			RunCmdTemplate:     sl.RunCmdTemplate,
			DefaultTimeLimitMs: sl.DefaultTimeLimitMs,
			DefaultMemoryMB:    sl.DefaultMemoryMB,
			TemplateCode:       sl.TemplateCode,
		}
		var existing catalogue.Language
		err := gdb.Where("runtime = ?", sl.Runtime).First(&existing).Error
		switch {
		case err == nil:
			lang.ID = existing.ID
			if err := gdb.Model(&catalogue.Language{}).Where("id = ?", existing.ID).Updates(map[string]interface{}{
				"name":                  lang.Name,
				"version":               lang.Version,
				"file_name":             lang.FileName,
				"compile_cmd_template":  lang.CompileCmdTemplate,
				"run_cmd_template":      lang.RunCmdTemplate,
				"default_time_limit_ms": lang.DefaultTimeLimitMs,
				"default_memory_mb":     lang.DefaultMemoryMB,
				"template_code":         lang.TemplateCode,
			}).Error; err != nil {
				return fmt.Errorf("update seeded language %s: %w", sl.Runtime, err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := gdb.Create(&lang).Error; err != nil {
				return fmt.Errorf("create seeded language %s: %w", sl.Runtime, err)
			}
		default:
			return fmt.Errorf("lookup seeded language %s: %w", sl.Runtime, err)
		}
	}
	return nil
}
