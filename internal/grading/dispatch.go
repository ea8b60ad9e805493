package grading

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/domain/report"
)

//go:embed models.yaml
var modelsYAML []byte

// ModelProfile is one row of the dispatch table.
type ModelProfile struct {
	Name           string `yaml:"-"`
	Model          string `yaml:"model"`
	Reasoning      bool   `yaml:"reasoning"`
	ThinkingBudget int    `yaml:"thinking_budget"`
}

type dispatchFile struct {
	Default        string                  `yaml:"default"`
	Profiles       map[string]ModelProfile `yaml:"profiles"`
	WorksheetTypes map[string]string       `yaml:"worksheet_types"`
}

// Dispatch maps a worksheet type to a model profile.
type Dispatch struct {
	def    ModelProfile
	byType map[report.WorksheetType]ModelProfile
}

// LoadDispatch parses the embedded table.
func LoadDispatch() (*Dispatch, error) {
	return parseDispatch(modelsYAML)
}

func parseDispatch(raw []byte) (*Dispatch, error) {
	var f dispatchFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse model dispatch: %w", err)
	}
	profile := func(name string) (ModelProfile, error) {
		p, ok := f.Profiles[name]
		if !ok || strings.TrimSpace(p.Model) == "" {
			return ModelProfile{}, fmt.Errorf("model dispatch: unknown profile %q", name)
		}
		p.Name = name
		return p, nil
	}
	def, err := profile(f.Default)
	if err != nil {
		return nil, err
	}
	d := &Dispatch{def: def, byType: map[report.WorksheetType]ModelProfile{}}
	for wt, name := range f.WorksheetTypes {
		if !report.WorksheetType(wt).Valid() {
			return nil, fmt.Errorf("model dispatch: unknown worksheet type %q", wt)
		}
		p, err := profile(name)
		if err != nil {
			return nil, err
		}
		d.byType[report.WorksheetType(wt)] = p
	}
	return d, nil
}

// MustLoadDispatch panics if the embedded table is broken.
func MustLoadDispatch() *Dispatch {
	d, err := LoadDispatch()
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Dispatch) Select(wt report.WorksheetType) ModelProfile {
	if p, ok := d.byType[wt]; ok {
		return p
	}
	return d.def
}
