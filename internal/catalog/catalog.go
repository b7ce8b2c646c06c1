// Package catalog holds the fixed table of collectible figures and their draw
// probabilities. A Catalog is built once at process start and never mutated.
package catalog

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Tolerance for the sum of weights.
const Tolerance = 1e-9

var ErrInvalidCatalog = errors.New("invalid catalog")

// Figure is a catalog row before weights are assigned.
type Figure struct {
	Slug string
	Name string
}

// Item is a figure with its media reference and draw probability.
type Item struct {
	Slug     string  `json:"slug"`
	Name     string  `json:"name"`
	MediaRef string  `json:"media_ref"`
	Weight   float64 `json:"weight"`
}

// Weighted pairs an item with its probability.
type Weighted struct {
	Item        Item
	Probability float64
}

// DefaultFigures is the Stranger Things set served by the bot.
var DefaultFigures = []Figure{
	{Slug: "dustin", Name: "Дастин"},
	{Slug: "dustin-upside-down", Name: "Дастин из изнанки"},
	{Slug: "mike", Name: "Майк"},
	{Slug: "will", Name: "Уилл"},
	{Slug: "will-upside-down", Name: "Уилл из изнанки"},
	{Slug: "lucas", Name: "Лукас"},
	{Slug: "max", Name: "Макс"},
	{Slug: "eleven-lab", Name: "Оди из лаборатории"},
	{Slug: "eleven-upside-down", Name: "Оди из изнанки"},
	{Slug: "eleven-lab-coat", Name: "Оди в лабораторном халате"},
	{Slug: "demogorgon-pencil", Name: "Демогоргон на карандаш"},
	{Slug: "demogorgon-keychain", Name: "Демогоргон-брелок"},
	{Slug: "demogorgon-keychain-clip", Name: "Демогоргон-брелок на скрепке"},
	{Slug: "steve", Name: "Стив"},
	{Slug: "steve-upside-down", Name: "Стив из изнанки"},
	{Slug: "vecna", Name: "Векна"},
	{Slug: "erica", Name: "Эрика"},
	{Slug: "hopper", Name: "Хоппер"},
	{Slug: "hopper-upside-down", Name: "Хоппер из изнанки"},
	{Slug: "nancy", Name: "Нэнси"},
	{Slug: "robin-upside-down", Name: "Робин из изнанки"},
	{Slug: "eddie-upside-down", Name: "Эдди из изнанки"},
	{Slug: "max-upside-down", Name: "Макс из изнанки"},
	{Slug: "steve-and-robin-tied", Name: "Связанные Стив и Робин"},
}

// DefaultRare are the two rare figures and their fixed probabilities.
var DefaultRare = map[string]float64{
	"will":             0.005,
	"will-upside-down": 0.01,
}

type Catalog struct {
	items []Item
	index map[string]int
}

// New assigns the rare probabilities to the named slugs and splits the
// remaining mass evenly over every other figure:
//
//	pOther = (1 - sum(rare)) / (N - len(rare))
func New(figures []Figure, rare map[string]float64, mediaBaseURL string) (*Catalog, error) {
	if len(figures) == 0 {
		return nil, fmt.Errorf("%w: no figures", ErrInvalidCatalog)
	}

	c := &Catalog{
		items: make([]Item, 0, len(figures)),
		index: make(map[string]int, len(figures)),
	}
	names := make(map[string]struct{}, len(figures))
	for _, f := range figures {
		if f.Slug == "" || f.Name == "" {
			return nil, fmt.Errorf("%w: empty slug or name", ErrInvalidCatalog)
		}
		if _, dup := c.index[f.Slug]; dup {
			return nil, fmt.Errorf("%w: duplicate slug %q", ErrInvalidCatalog, f.Slug)
		}
		if _, dup := names[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidCatalog, f.Name)
		}
		names[f.Name] = struct{}{}
		c.index[f.Slug] = len(c.items)
		c.items = append(c.items, Item{
			Slug:     f.Slug,
			Name:     f.Name,
			MediaRef: mediaRef(mediaBaseURL, f.Slug),
		})
	}

	rareMass := 0.0
	for slug, p := range rare {
		if _, ok := c.index[slug]; !ok {
			return nil, fmt.Errorf("%w: rare item %q not in catalog", ErrInvalidCatalog, slug)
		}
		rareMass += p
	}

	others := len(c.items) - len(rare)
	pOther := 0.0
	if others > 0 {
		pOther = (1 - rareMass) / float64(others)
	}
	for i := range c.items {
		if p, ok := rare[c.items[i].Slug]; ok {
			c.items[i].Weight = p
		} else {
			c.items[i].Weight = pOther
		}
		if w := c.items[i].Weight; w <= 0 || w > 1 {
			return nil, fmt.Errorf("%w: weight of %q out of (0,1]: %v", ErrInvalidCatalog, c.items[i].Slug, w)
		}
	}

	if sum := c.TotalWeight(); math.Abs(sum-1) > Tolerance {
		return nil, fmt.Errorf("%w: weights sum to %v", ErrInvalidCatalog, sum)
	}
	return c, nil
}

// Default builds the bot's catalog. A nil rare map means DefaultRare.
func Default(rare map[string]float64, mediaBaseURL string) (*Catalog, error) {
	if rare == nil {
		rare = DefaultRare
	}
	return New(DefaultFigures, rare, mediaBaseURL)
}

func mediaRef(base, slug string) string {
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" + slug + ".png"
}

func (c *Catalog) Len() int { return len(c.items) }

// Items returns a copy in catalog order.
func (c *Catalog) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Catalog) Weights() []Weighted {
	out := make([]Weighted, len(c.items))
	for i, it := range c.items {
		out[i] = Weighted{Item: it, Probability: it.Weight}
	}
	return out
}

func (c *Catalog) TotalWeight() float64 {
	sum := 0.0
	for _, it := range c.items {
		sum += it.Weight
	}
	return sum
}

func (c *Catalog) Lookup(slug string) (Item, bool) {
	i, ok := c.index[slug]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// LookupName matches the display name case-insensitively.
func (c *Catalog) LookupName(name string) (Item, bool) {
	for _, it := range c.items {
		if strings.EqualFold(it.Name, name) {
			return it, true
		}
	}
	return Item{}, false
}

// Index returns the catalog position of slug, or Len() for unknown slugs so
// they sort after every known item.
func (c *Catalog) Index(slug string) int {
	if i, ok := c.index[slug]; ok {
		return i
	}
	return len(c.items)
}
