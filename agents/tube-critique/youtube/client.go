package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"tubecritique/internal/models"
	"tubecritique/shared/config"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const defaultBaseURL = "https://www.youtube.com"

// ErrVideoNotFound is returned when the metadata service knows nothing about an id.
var ErrVideoNotFound = errors.New("video not found")

// Client fetches metadata and transcripts for single videos. Metadata comes
// from the Data API when credentials are configured and from the watch page
// otherwise; transcripts always come from the watch page caption tracks.
type Client struct {
	service    *youtube.Service
	httpClient *http.Client
	baseURL    string
	languages  []string
	logger     *slog.Logger

	oauthConfig *oauth2.Config
	tokens      *tokenSaver
}

func NewClient(ctx context.Context, cfg *config.YouTubeConfig, languages []string, logger *slog.Logger) (*Client, error) {
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		baseURL:    defaultBaseURL,
		languages:  languages,
		logger:     logger,
	}

	switch {
	case cfg.APIKey != "":
		service, err := youtube.NewService(ctx, option.WithAPIKey(cfg.APIKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create YouTube service: %w", err)
		}
		c.service = service
		logger.Info("YouTube metadata via Data API (API key)")

	case cfg.UsesOAuth():
		token, err := loadToken(cfg.TokenFile)
		if err != nil {
			if !errors.Is(err, ErrNoToken) {
				return nil, err
			}
			logger.Warn("YouTube OAuth configured but no token found, using watch page metadata", "token_file", cfg.TokenFile)
			break
		}
		c.oauthConfig = newOAuthConfig(cfg)
		c.tokens = &tokenSaver{
			config:    c.oauthConfig,
			token:     token,
			tokenFile: cfg.TokenFile,
			logger:    logger,
		}
		authClient := oauth2.NewClient(ctx, c.tokens)
		authClient.Timeout = cfg.HTTPTimeout
		service, err := youtube.NewService(ctx, option.WithHTTPClient(authClient))
		if err != nil {
			return nil, fmt.Errorf("failed to create YouTube service: %w", err)
		}
		c.service = service
		logger.Info("YouTube metadata via Data API (OAuth)")

	default:
		logger.Info("YouTube metadata via watch page (no Data API credentials)")
	}

	return c, nil
}

// UsesOAuth reports whether the client holds an OAuth token that needs
// periodic refreshing.
func (c *Client) UsesOAuth() bool {
	return c.tokens != nil
}

// RefreshToken proactively refreshes the OAuth token; the token saver writes
// any new token to disk.
func (c *Client) RefreshToken(ctx context.Context) error {
	if c.tokens == nil {
		return nil
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}
	c.logger.Debug("YouTube token valid", "expiry", tok.Expiry)
	return nil
}

// FetchMetadata returns the video's metadata. It never fails: any error from
// the underlying service is logged and the all-sentinel metadata is returned.
func (c *Client) FetchMetadata(ctx context.Context, videoID string) models.VideoMetadata {
	var (
		meta models.VideoMetadata
		err  error
	)
	if c.service != nil {
		meta, err = c.metadataFromAPI(ctx, videoID)
	} else {
		meta, err = c.metadataFromWatchPage(ctx, videoID)
	}
	if err != nil {
		c.logger.Warn("metadata unavailable", "video_id", videoID, "error", err)
		return models.UnknownMetadata()
	}
	return meta
}

func (c *Client) metadataFromAPI(ctx context.Context, videoID string) (models.VideoMetadata, error) {
	resp, err := c.service.Videos.List([]string{"snippet", "contentDetails", "statistics"}).
		Id(videoID).
		Context(ctx).
		Do()
	if err != nil {
		return models.VideoMetadata{}, fmt.Errorf("videos.list: %w", err)
	}
	if len(resp.Items) == 0 {
		return models.VideoMetadata{}, ErrVideoNotFound
	}

	item := resp.Items[0]
	var meta models.VideoMetadata
	if item.Snippet != nil {
		meta.Title = item.Snippet.Title
		meta.Channel = item.Snippet.ChannelTitle
		meta.Thumbnail = bestThumbnail(item.Snippet.Thumbnails)
	}
	var seconds int
	if item.ContentDetails != nil {
		seconds = parseDurationSeconds(item.ContentDetails.Duration)
	}
	meta.Duration = FormatDuration(seconds)
	if item.Statistics != nil {
		meta.ViewCount = int64(item.Statistics.ViewCount)
	}

	return withSentinels(meta), nil
}

func (c *Client) metadataFromWatchPage(ctx context.Context, videoID string) (models.VideoMetadata, error) {
	pr, err := c.fetchPlayerResponse(ctx, videoID)
	if err != nil {
		return models.VideoMetadata{}, err
	}
	details := pr.VideoDetails
	if details == nil {
		return models.VideoMetadata{}, fmt.Errorf("%w: %s", ErrVideoNotFound, pr.playabilityReason())
	}

	seconds, _ := strconv.Atoi(details.LengthSeconds)
	meta := models.VideoMetadata{
		Title:    details.Title,
		Channel:  details.Author,
		Duration: FormatDuration(seconds),
	}
	if views, err := strconv.ParseInt(details.ViewCount, 10, 64); err == nil {
		meta.ViewCount = views
	}
	if thumbs := details.Thumbnail.Thumbnails; len(thumbs) > 0 {
		// Thumbnails are listed smallest first.
		meta.Thumbnail = thumbs[len(thumbs)-1].URL
	}

	return withSentinels(meta), nil
}

func bestThumbnail(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, thumb := range []*youtube.Thumbnail{t.Maxres, t.Standard, t.High, t.Medium, t.Default} {
		if thumb != nil && thumb.Url != "" {
			return thumb.Url
		}
	}
	return ""
}

func withSentinels(meta models.VideoMetadata) models.VideoMetadata {
	if meta.Title == "" {
		meta.Title = models.UnknownTitle
	}
	if meta.Channel == "" {
		meta.Channel = models.UnknownChannel
	}
	if meta.Duration == "" {
		meta.Duration = models.UnknownDuration
	}
	return meta
}
