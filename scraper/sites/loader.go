// Package sites holds declarative site adapters: per-vendor selector maps
// loaded from a YAML file.
package sites

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"catalog-ingest/scraper"
)

// Field locates one value inside an item node. Attr reads an attribute
// instead of the node text.
type Field struct {
	Selector string `mapstructure:"selector" validate:"required"`
	Attr     string `mapstructure:"attr"`
}

// Fields maps item properties to their selectors.
type Fields struct {
	Title     Field  `mapstructure:"title" validate:"required"`
	Price     Field  `mapstructure:"price" validate:"required"`
	Link      *Field `mapstructure:"link"`
	Thumbnail *Field `mapstructure:"thumbnail"`
	Category  *Field `mapstructure:"category"`
}

// OutOfStock flags an item node as unavailable when Selector matches inside
// it or its text contains Text.
type OutOfStock struct {
	Selector string `mapstructure:"selector"`
	Text     string `mapstructure:"text"`
}

// AdapterSpec is one vendor entry of the adapters file.
type AdapterSpec struct {
	Name              string                   `mapstructure:"name" validate:"required"`
	BaseURL           string                   `mapstructure:"base_url" validate:"omitempty,url"`
	Entries           []scraper.Entry          `mapstructure:"entries" validate:"required,min=1,dive"`
	ReadySelector     string                   `mapstructure:"ready_selector" validate:"required"`
	ContainerSelector string                   `mapstructure:"container_selector"`
	NoResultsSelector string                   `mapstructure:"no_results_selector"`
	ItemSelector      string                   `mapstructure:"item_selector" validate:"required"`
	Fields            Fields                   `mapstructure:"fields" validate:"required"`
	OutOfStock        OutOfStock               `mapstructure:"out_of_stock"`
	Pagination        scraper.PaginationConfig `mapstructure:"pagination" validate:"required"`
	Captcha           scraper.CaptchaConfig    `mapstructure:"captcha"`
}

type adaptersFile struct {
	Vendors []AdapterSpec `mapstructure:"vendors" validate:"required,min=1,dive"`
}

// Load reads the adapters file at path.
func Load(path string) ([]*SelectorAdapter, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading adapters file: %w", err)
	}
	return decode(v)
}

// Parse reads adapter definitions from YAML.
func Parse(r io.Reader) ([]*SelectorAdapter, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading adapters: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) ([]*SelectorAdapter, error) {
	var file adaptersFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("unable to decode adapters: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(file); err != nil {
		return nil, fmt.Errorf("invalid adapters: %w", err)
	}

	seen := make(map[string]bool, len(file.Vendors))
	adapters := make([]*SelectorAdapter, 0, len(file.Vendors))
	for _, spec := range file.Vendors {
		key := strings.ToLower(strings.TrimSpace(spec.Name))
		if seen[key] {
			return nil, fmt.Errorf("invalid adapters: vendor %q defined twice", spec.Name)
		}
		seen[key] = true

		if _, err := scraper.NewStrategy(spec.Pagination); err != nil {
			return nil, fmt.Errorf("invalid adapters: vendor %q: %w", spec.Name, err)
		}
		adapters = append(adapters, NewSelectorAdapter(spec))
	}
	return adapters, nil
}

// Filter keeps the adapters whose vendor name is in names. An empty names
// list keeps everything.
func Filter(adapters []*SelectorAdapter, names []string) ([]*SelectorAdapter, error) {
	if len(names) == 0 {
		return adapters, nil
	}

	byName := make(map[string]*SelectorAdapter, len(adapters))
	for _, a := range adapters {
		byName[strings.ToLower(a.Vendor())] = a
	}

	out := make([]*SelectorAdapter, 0, len(names))
	for _, name := range names {
		a, ok := byName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("no adapter defined for vendor %q", name)
		}
		out = append(out, a)
	}
	return out, nil
}
