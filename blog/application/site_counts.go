package application

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"math"
	"strconv"
	"strings"

	"github.com/dfryer1193/sitecounts/blog/domain"
	"github.com/dfryer1193/sitecounts/shared/block"
	"github.com/dfryer1193/sitecounts/shared/i18n"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// PostIDParam is the request query parameter echoed by the block.
	PostIDParam = "post_id"

	maxFilteredPosts  = 5
	filteredPostsPage = maxFilteredPosts + 1
)

//go:embed blocks/site-counts/block.json
var embeddedBlocks embed.FS

const embeddedSiteCountsDir = "blocks/site-counts"

var siteCountsTemplate = template.Must(template.New("site-counts").Parse(`<div class="{{.ClassName}}">
	<h2>{{.CountsHeading}}</h2>
	<ul>
{{- range .CountLines}}
		<li>{{.}}</li>
{{- end}}
	</ul>
{{- if .CurrentPostLine}}
	<p>{{.CurrentPostLine}}</p>
{{- end}}
{{- if .HasFiltered}}
	<h2>{{.FilteredHeading}}</h2>
	<ul>
{{- range .Titles}}
		<li>{{.}}</li>
{{- end}}
	</ul>
{{- end}}
</div>
`))

var attributeValidator = validator.New()

type PostTypeLister interface {
	ListPostTypes(ctx context.Context, filter domain.PostTypeFilter) ([]*domain.PostType, error)
}

type PostCounter interface {
	CountPosts(ctx context.Context, postType string) (domain.PostCounts, error)
}

type PostFinder interface {
	QueryPostIDs(ctx context.Context, q *domain.PostQuery) ([]int64, error)
	GetPost(ctx context.Context, id int64) (*domain.Post, error)
}

// SiteCountsAttributes are the typed attributes of the site counts block.
type SiteCountsAttributes struct {
	ClassName string `json:"className" validate:"required,max=256"`
}

// RenderInput carries the ambient state the block depends on.
type RenderInput struct {
	// CurrentPostID is the post being displayed; it is left out of the list.
	CurrentPostID int64
	// RequestedPostID is the parsed post_id request parameter.
	RequestedPostID int64
}

type siteCountsView struct {
	ClassName       string
	CountsHeading   string
	CountLines      []string
	CurrentPostLine string
	HasFiltered     bool
	FilteredHeading string
	Titles          []string
}

// SiteCountsBlock renders post type counts and a short list of posts tagged
// foo in category baz.
type SiteCountsBlock struct {
	types      PostTypeLister
	counter    PostCounter
	finder     PostFinder
	translator *i18n.Translator

	metadataFS  fs.FS
	metadataDir string
	className   string
}

type SiteCountsOption func(*SiteCountsBlock)

// WithMetadataDir registers the block from a block.json in dir instead of
// the embedded copy.
func WithMetadataDir(fsys fs.FS, dir string) SiteCountsOption {
	return func(b *SiteCountsBlock) {
		b.metadataFS = fsys
		b.metadataDir = dir
	}
}

func NewSiteCountsBlock(types PostTypeLister, counter PostCounter, finder PostFinder, translator *i18n.Translator, opts ...SiteCountsOption) *SiteCountsBlock {
	if translator == nil {
		translator = i18n.NewTranslator("en")
	}

	b := &SiteCountsBlock{
		types:       types,
		counter:     counter,
		finder:      finder,
		translator:  translator,
		metadataFS:  embeddedBlocks,
		metadataDir: embeddedSiteCountsDir,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register loads the block metadata and binds RenderBlock as its render callback.
func (b *SiteCountsBlock) Register(registry *block.Registry) error {
	bt, err := registry.RegisterFromMetadata(b.metadataFS, b.metadataDir, b.RenderBlock)
	if err != nil {
		return fmt.Errorf("failed to register site counts block: %w", err)
	}

	b.className = bt.Metadata.ClassName()
	log.Info().Str("block", bt.Metadata.Name).Msg("Registered block")
	return nil
}

// RenderBlock is the registry callback. It decodes the attributes and reads
// post_id from the request before delegating to Render.
func (b *SiteCountsBlock) RenderBlock(ctx context.Context, attrs block.Attributes, content string, inst *block.Instance) (string, error) {
	defaultClass := b.className
	if defaultClass == "" && inst != nil && inst.Type != nil {
		defaultClass = inst.Type.Metadata.ClassName()
	}

	typed, err := DecodeSiteCountsAttributes(attrs, defaultClass)
	if err != nil {
		return "", err
	}

	var input RenderInput
	if inst != nil {
		input.CurrentPostID = inst.Context.PostID
		input.RequestedPostID = ParsePostID(inst.Context.Query.Get(PostIDParam))
	}

	return b.Render(ctx, typed, content, input)
}

// Render produces the block markup. content is not used.
func (b *SiteCountsBlock) Render(ctx context.Context, attrs SiteCountsAttributes, _ string, input RenderInput) (string, error) {
	ctx, span := otel.Tracer("blog").Start(ctx, "SiteCountsBlock.Render")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("current_post_id", input.CurrentPostID),
		attribute.Int64("requested_post_id", input.RequestedPostID),
	)

	view := siteCountsView{
		ClassName:       attrs.ClassName,
		CountsHeading:   b.translator.T(i18n.MsgPostCounts),
		FilteredHeading: b.translator.T(i18n.MsgFilteredHeading),
	}

	types, err := b.types.ListPostTypes(ctx, domain.PublicOnly())
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to list public post types: %w", err)
	}

	for _, pt := range types {
		counts, err := b.counter.CountPosts(ctx, pt.Slug)
		if err != nil {
			span.RecordError(err)
			return "", fmt.Errorf("failed to count %s posts: %w", pt.Slug, err)
		}
		view.CountLines = append(view.CountLines,
			b.translator.Sprintf(i18n.MsgThereAre, strconv.Itoa(counts.Published()), pt.Label))
	}

	if input.RequestedPostID != 0 {
		view.CurrentPostLine = b.translator.Sprintf(i18n.MsgCurrentPostID, strconv.FormatInt(input.RequestedPostID, 10))
	}

	ids, err := b.finder.QueryPostIDs(ctx, FilteredPostsQuery())
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to query filtered posts: %w", err)
	}

	view.HasFiltered = len(ids) > 0
	for _, id := range SelectFilteredPosts(ids, input.CurrentPostID) {
		title, err := b.displayTitle(ctx, id)
		if err != nil {
			span.RecordError(err)
			return "", err
		}
		view.Titles = append(view.Titles, title)
	}

	var buf bytes.Buffer
	if err := siteCountsTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to execute site counts template: %w", err)
	}

	return buf.String(), nil
}

// displayTitle mirrors the host title lookup: private posts are prefixed and
// ids that no longer resolve give an empty title.
func (b *SiteCountsBlock) displayTitle(ctx context.Context, id int64) (string, error) {
	post, err := b.finder.GetPost(ctx, id)
	if errors.Is(err, domain.ErrPostNotFound) {
		log.Warn().Int64("postID", id).Msg("Filtered post disappeared before its title was read")
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get title of post %d: %w", id, err)
	}

	if post.Status == domain.StatusPrivate {
		return b.translator.Sprintf(i18n.MsgPrivateTitle, post.Title), nil
	}
	return post.Title, nil
}

// FilteredPostsQuery is the fixed query behind the post list: posts and pages
// in any status whose authored hour is 9 through 17 inclusive (so 17:45
// matches), tagged foo and filed under baz. One more id than is displayed is
// fetched so the current post can be skipped.
func FilteredPostsQuery() *domain.PostQuery {
	return &domain.PostQuery{
		PostTypes:  []string{"post", "page"},
		PostStatus: domain.StatusAny,
		DateQuery: []domain.DateClause{
			{Hour: 9, Compare: domain.CompareGreaterEqual},
			{Hour: 17, Compare: domain.CompareLessEqual},
		},
		Tag:          "foo",
		CategoryName: "baz",
		Fields:       domain.FieldsIDs,
		PostsPerPage: filteredPostsPage,
	}
}

// SelectFilteredPosts walks ids in order, drops currentID and keeps at most
// five. Ids past the fifth kept one are discarded even when currentID was
// not among them.
func SelectFilteredPosts(ids []int64, currentID int64) []int64 {
	selected := make([]int64, 0, maxFilteredPosts)
	for _, id := range ids {
		if id == currentID {
			continue
		}
		selected = append(selected, id)
		if len(selected) == maxFilteredPosts {
			break
		}
	}
	return selected
}

// DecodeSiteCountsAttributes converts raw block attributes to their typed
// form. A missing or empty className falls back to defaultClass.
func DecodeSiteCountsAttributes(attrs block.Attributes, defaultClass string) (SiteCountsAttributes, error) {
	var typed SiteCountsAttributes

	if len(attrs) > 0 {
		raw, err := json.Marshal(attrs)
		if err != nil {
			return typed, fmt.Errorf("failed to encode block attributes: %w", err)
		}
		if err := json.Unmarshal(raw, &typed); err != nil {
			return typed, fmt.Errorf("%w: %w", block.ErrInvalidAttributes, err)
		}
	}

	typed.ClassName = strings.TrimSpace(typed.ClassName)
	if typed.ClassName == "" {
		typed.ClassName = defaultClass
	}

	if err := attributeValidator.Struct(typed); err != nil {
		return typed, fmt.Errorf("%w: %w", block.ErrInvalidAttributes, err)
	}

	return typed, nil
}

// ParsePostID converts a request parameter to a post id the way an integer
// cast does: leading whitespace is skipped, an optional sign and the longest
// run of digits are read, and anything else yields 0. Negative ids clamp to
// 0 and values beyond int64 saturate.
func ParsePostID(raw string) int64 {
	s := strings.TrimLeft(raw, " \t\n\r\v\f")

	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digitsStart := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return 0
	}

	id, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) && s[0] != '-' {
			return math.MaxInt64
		}
		return 0
	}

	if id < 0 {
		return 0
	}
	return id
}
