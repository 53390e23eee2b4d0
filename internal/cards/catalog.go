package cards

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultFiles embed.FS

// Definition is one catalog entry as written in catalog.yaml.
type Definition struct {
	ID               CardID `yaml:"id"`
	Name             string `yaml:"name"`
	Description      string `yaml:"description"`
	AnimationDelayMs int    `yaml:"animation_delay_ms"`
	Global           bool   `yaml:"global"`
	Copies           int    `yaml:"copies"`
	AmountSeconds    int    `yaml:"amount_seconds"`
}

func (d Definition) AnimationDelay() time.Duration {
	return time.Duration(d.AnimationDelayMs) * time.Millisecond
}

// DefaultTimeAdjustment applies to time cards whose entry omits amount_seconds.
const DefaultTimeAdjustment = 2 * time.Minute

func (d Definition) Amount() time.Duration {
	if d.AmountSeconds <= 0 {
		return DefaultTimeAdjustment
	}
	return time.Duration(d.AmountSeconds) * time.Second
}

// Catalog is the fixed set of cards every deck is built from.
type Catalog struct {
	order []CardID
	defs  map[CardID]Definition
}

type catalogFile struct {
	Cards []Definition `yaml:"cards"`
}

// LoadCatalog reads path, or the embedded default when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	var raw []byte
	var err error
	if strings.TrimSpace(path) == "" {
		raw, err = fs.ReadFile(defaultFiles, "catalog.yaml")
		if err != nil {
			return nil, fmt.Errorf("read embedded catalog: %w", err)
		}
	} else {
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
	}
	return ParseCatalog(raw)
}

// DefaultCatalog returns the embedded catalog; it panics only if the embedded file is broken.
func DefaultCatalog() *Catalog {
	c, err := LoadCatalog("")
	if err != nil {
		panic(err)
	}
	return c
}

func ParseCatalog(raw []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c := &Catalog{defs: make(map[CardID]Definition, len(f.Cards))}
	for _, d := range f.Cards {
		d.ID = CardID(strings.TrimSpace(string(d.ID)))
		if d.ID == "" {
			return nil, fmt.Errorf("catalog entry without id")
		}
		if d.ID == NoMoreCards {
			return nil, fmt.Errorf("%s is reserved", NoMoreCards)
		}
		if _, dup := c.defs[d.ID]; dup {
			return nil, fmt.Errorf("duplicate card id %q", d.ID)
		}
		if !IsRegistered(d.ID) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCard, d.ID)
		}
		if d.Copies <= 0 {
			d.Copies = 1
		}
		if d.Global {
			d.Copies = 1
		}
		if d.AnimationDelayMs < 0 {
			d.AnimationDelayMs = 0
		}
		c.defs[d.ID] = d
		c.order = append(c.order, d.ID)
	}
	if len(c.order) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}
	return c, nil
}

func (c *Catalog) Lookup(id CardID) (Definition, bool) {
	if id == NoMoreCards {
		return noMoreCardsDef, true
	}
	d, ok := c.defs[id]
	return d, ok
}

// IDs lists the catalog in file order.
func (c *Catalog) IDs() []CardID { return append([]CardID(nil), c.order...) }
