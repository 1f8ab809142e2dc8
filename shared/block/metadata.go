package block

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

const metadataFile = "block.json"

var blockNamePattern = regexp.MustCompile(`^[a-z0-9-]+/[a-z0-9-]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("blockname", func(fl validator.FieldLevel) bool {
		return blockNamePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// AttributeSchema declares one block attribute.
type AttributeSchema struct {
	Type    string `json:"type"`
	Default any    `json:"default,omitempty"`
}

// Metadata is the subset of block.json the server uses.
type Metadata struct {
	APIVersion  int                        `json:"apiVersion" validate:"omitempty,min=1,max=3"`
	Name        string                     `json:"name" validate:"required,blockname"`
	Title       string                     `json:"title"`
	Category    string                     `json:"category"`
	Description string                     `json:"description"`
	TextDomain  string                     `json:"textdomain"`
	Attributes  map[string]AttributeSchema `json:"attributes"`
}

// Validate checks the metadata for a well-formed namespaced name.
func (m *Metadata) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("invalid block metadata: %w", err)
	}
	return nil
}

// ClassName returns the class the host adds to the block wrapper,
// e.g. "wp-block-xwp-site-counts" for "xwp/site-counts".
func (m *Metadata) ClassName() string {
	namespace, name, _ := strings.Cut(m.Name, "/")
	if namespace == "core" {
		return "wp-block-" + name
	}
	return "wp-block-" + namespace + "-" + name
}

// LoadMetadata reads block.json from dir in fsys. dir may also name the
// metadata file itself.
func LoadMetadata(fsys fs.FS, dir string) (*Metadata, error) {
	file := dir
	if path.Ext(dir) != ".json" {
		file = path.Join(dir, metadataFile)
	}

	data, err := fs.ReadFile(fsys, file)
	if err != nil {
		return nil, fmt.Errorf("failed to read block metadata %s: %w", file, err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode block metadata %s: %w", file, err)
	}

	if err := meta.Validate(); err != nil {
		return nil, err
	}

	return &meta, nil
}
