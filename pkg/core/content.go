// pkg/core/content.go
package core

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidDocument is returned when a CMS document lacks a field the site
// needs to render it.
var ErrInvalidDocument = errors.New("invalid document")

func invalid(doc, field string) error {
	return fmt.Errorf("%w: %s: missing or invalid %s", ErrInvalidDocument, doc, field)
}

// Block type names as authored in the CMS.
const (
	BlockHero     = "hero"
	BlockSplitRow = "splitRow"
	BlockGridRow  = "gridRow"
	BlockCarousel = "carousel"
	BlockCallout  = "callout"
	BlockRichText = "richText"
	BlockTeamGrid = "teamGrid"
	BlockCTA      = "cta"
)

// Image is a resolved CMS image asset.
type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

// Link is an internal route or external URL with a label.
type Link struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

type HeroBlock struct {
	Heading    string `json:"heading"`
	Subheading string `json:"subheading,omitempty"`
	Image      *Image `json:"image,omitempty"`
	CTA        *Link  `json:"cta,omitempty"`
}

type SplitRowBlock struct {
	Heading   string `json:"heading,omitempty"`
	Body      string `json:"body"`
	Image     *Image `json:"image,omitempty"`
	ImageSide string `json:"imageSide,omitempty"`
}

type GridItem struct {
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
	Icon  string `json:"icon,omitempty"`
	Link  *Link  `json:"link,omitempty"`
}

type GridRowBlock struct {
	Heading string     `json:"heading,omitempty"`
	Columns int        `json:"columns,omitempty"`
	Items   []GridItem `json:"items"`
}

type Slide struct {
	Image   Image  `json:"image"`
	Caption string `json:"caption,omitempty"`
}

type CarouselBlock struct {
	Heading string  `json:"heading,omitempty"`
	Slides  []Slide `json:"slides"`
}

type CalloutBlock struct {
	Tone string `json:"tone,omitempty"`
	Body string `json:"body"`
}

type RichTextBlock struct {
	Body string `json:"body"`
}

type TeamGridBlock struct {
	Heading string       `json:"heading,omitempty"`
	Members []TeamMember `json:"members"`
}

type CTABlock struct {
	Heading string `json:"heading"`
	Body    string `json:"body,omitempty"`
	Link    Link   `json:"link"`
}

// Block is one content block of a page. Exactly one payload field is set,
// selected by Type. Unknown types keep only Type and Key.
type Block struct {
	Type string `json:"_type"`
	Key  string `json:"_key"`

	Hero     *HeroBlock     `json:"-"`
	SplitRow *SplitRowBlock `json:"-"`
	GridRow  *GridRowBlock  `json:"-"`
	Carousel *CarouselBlock `json:"-"`
	Callout  *CalloutBlock  `json:"-"`
	RichText *RichTextBlock `json:"-"`
	TeamGrid *TeamGridBlock `json:"-"`
	CTA      *CTABlock      `json:"-"`
}

// UnmarshalJSON decodes the payload matching the block's _type.
func (b *Block) UnmarshalJSON(data []byte) error {
	var head struct {
		Type string `json:"_type"`
		Key  string `json:"_key"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	*b = Block{Type: head.Type, Key: head.Key}

	var target any
	switch head.Type {
	case BlockHero:
		b.Hero = &HeroBlock{}
		target = b.Hero
	case BlockSplitRow:
		b.SplitRow = &SplitRowBlock{}
		target = b.SplitRow
	case BlockGridRow:
		b.GridRow = &GridRowBlock{}
		target = b.GridRow
	case BlockCarousel:
		b.Carousel = &CarouselBlock{}
		target = b.Carousel
	case BlockCallout:
		b.Callout = &CalloutBlock{}
		target = b.Callout
	case BlockRichText:
		b.RichText = &RichTextBlock{}
		target = b.RichText
	case BlockTeamGrid:
		b.TeamGrid = &TeamGridBlock{}
		target = b.TeamGrid
	case BlockCTA:
		b.CTA = &CTABlock{}
		target = b.CTA
	default:
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decoding %s block %s: %w", head.Type, head.Key, err)
	}
	return nil
}

// MarshalJSON flattens the payload next to _type and _key.
func (b Block) MarshalJSON() ([]byte, error) {
	var payload any
	switch {
	case b.Hero != nil:
		payload = b.Hero
	case b.SplitRow != nil:
		payload = b.SplitRow
	case b.GridRow != nil:
		payload = b.GridRow
	case b.Carousel != nil:
		payload = b.Carousel
	case b.Callout != nil:
		payload = b.Callout
	case b.RichText != nil:
		payload = b.RichText
	case b.TeamGrid != nil:
		payload = b.TeamGrid
	case b.CTA != nil:
		payload = b.CTA
	}

	fields := map[string]any{}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
	}
	fields["_type"] = b.Type
	fields["_key"] = b.Key
	return json.Marshal(fields)
}

// Validate checks the fields the renderer for this block type relies on.
func (b *Block) Validate() error {
	doc := fmt.Sprintf("%s block %s", b.Type, b.Key)
	switch b.Type {
	case BlockHero:
		if b.Hero == nil || b.Hero.Heading == "" {
			return invalid(doc, "heading")
		}
	case BlockSplitRow:
		if b.SplitRow == nil || b.SplitRow.Body == "" {
			return invalid(doc, "body")
		}
	case BlockGridRow:
		if b.GridRow == nil || len(b.GridRow.Items) == 0 {
			return invalid(doc, "items")
		}
	case BlockCarousel:
		if b.Carousel == nil || len(b.Carousel.Slides) == 0 {
			return invalid(doc, "slides")
		}
		for i, s := range b.Carousel.Slides {
			if s.Image.URL == "" {
				return invalid(doc, fmt.Sprintf("slides[%d].image", i))
			}
		}
	case BlockCallout:
		if b.Callout == nil || b.Callout.Body == "" {
			return invalid(doc, "body")
		}
	case BlockRichText:
		if b.RichText == nil || b.RichText.Body == "" {
			return invalid(doc, "body")
		}
	case BlockTeamGrid:
		if b.TeamGrid == nil {
			return invalid(doc, "members")
		}
	case BlockCTA:
		if b.CTA == nil || b.CTA.Heading == "" || b.CTA.Link.Href == "" {
			return invalid(doc, "heading/link")
		}
	}
	return nil
}

// Page is a routed CMS page.
type Page struct {
	ID          string  `json:"_id"`
	Title       string  `json:"title"`
	Slug        string  `json:"slug"`
	Description string  `json:"description,omitempty"`
	Blocks      []Block `json:"blocks"`
}

// Validate checks the page and each of its blocks.
func (p *Page) Validate() error {
	if p.Slug == "" {
		return invalid("page "+p.ID, "slug")
	}
	if p.Title == "" {
		return invalid("page "+p.Slug, "title")
	}
	for i := range p.Blocks {
		if err := p.Blocks[i].Validate(); err != nil {
			return fmt.Errorf("page %s: %w", p.Slug, err)
		}
	}
	return nil
}

// NavItem is one entry of the site navigation.
type NavItem struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

// Settings holds site-wide content.
type Settings struct {
	SiteName     string    `json:"siteName"`
	ContactEmail string    `json:"contactEmail,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Navigation   []NavItem `json:"navigation,omitempty"`
	Footer       string    `json:"footer,omitempty"`
}

func (s *Settings) Validate() error {
	if s.SiteName == "" {
		return invalid("settings", "siteName")
	}
	return nil
}

// TeamMember is a person shown on the team grid.
type TeamMember struct {
	Name     string `json:"name"`
	Role     string `json:"role,omitempty"`
	Bio      string `json:"bio,omitempty"`
	PhotoURL string `json:"photoUrl,omitempty"`
}

func (m *TeamMember) Validate() error {
	if m.Name == "" {
		return invalid("team member", "name")
	}
	return nil
}
