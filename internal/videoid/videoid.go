package videoid

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Domain is the canonical source domain every item belongs to.
const Domain = "youtube.com"

// ErrNotYouTube is returned when a URL does not point at a single YouTube video.
var ErrNotYouTube = errors.New("not a youtube video url")

// MaxIDLength bounds accepted video ids. Real ids are 11 characters.
const MaxIDLength = 64

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Well-known host aliases. Key: input host. Value: canonical domain.
var canonicalDomainByHost = map[string]string{
	"youtube.com":       Domain,
	"www.youtube.com":   Domain,
	"m.youtube.com":     Domain,
	"music.youtube.com": Domain,
	"youtu.be":          Domain,
}

// ResolveCanonicalDomain returns the canonical domain for host.
//
// host should be a hostname without port.
func ResolveCanonicalDomain(host string) string {
	h := normalizeHost(host)
	if h == "" {
		return ""
	}
	if c, ok := canonicalDomainByHost[h]; ok {
		return c
	}
	return h
}

// NamespaceUUIDForDomain returns a deterministic UUIDv5 namespace for a domain.
// Example: uuid.NewSHA1(uuid.NameSpaceDNS, []byte("youtube.com")).
func NamespaceUUIDForDomain(domain string) uuid.UUID {
	d := strings.TrimSpace(strings.ToLower(domain))
	d = strings.TrimSuffix(d, ".")
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(d))
}

// VideoUUID returns a deterministic UUIDv5 for a (domain, videoID) pair.
//
// The name string is exactly "{videoID}"; the domain is already scoped by the namespace.
func VideoUUID(domain string, videoID string) uuid.UUID {
	d := strings.TrimSpace(strings.ToLower(domain))
	d = strings.TrimSuffix(d, ".")
	v := strings.TrimSpace(videoID)

	ns := NamespaceUUIDForDomain(d)
	return uuid.NewSHA1(ns, []byte(v))
}

// ItemID is the stable item identity for a YouTube video id.
func ItemID(videoID string) uuid.UUID {
	return VideoUUID(Domain, videoID)
}

// CanonicalURL is the short link stored for a video.
func CanonicalURL(videoID string) string {
	return "https://youtu.be/" + videoID
}

// Normalizer extracts canonical video ids from free-form URLs. It holds no
// state; the zero value is ready to use.
type Normalizer struct{}

func (Normalizer) Normalize(raw string) (string, error) {
	return Normalize(raw)
}

// Normalize extracts the video id from a YouTube URL. Inputs
// without a scheme are treated as https. The result is the same for every
// URL shape that points at the same video.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("missing url")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Join(ErrNotYouTube, err)
	}
	if u.Scheme == "" {
		u, err = url.Parse("https://" + raw)
		if err != nil {
			return "", errors.Join(ErrNotYouTube, err)
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrNotYouTube
	}

	id, err := ExtractYouTubeVideoID(u.String())
	if err != nil {
		return "", err
	}
	if len(id) > MaxIDLength || !idPattern.MatchString(id) {
		return "", ErrNotYouTube
	}
	return id, nil
}

func normalizeHost(hostport string) string {
	h := strings.TrimSpace(strings.ToLower(hostport))
	if h == "" {
		return ""
	}
	// url.URL.Host may include port.
	if strings.Contains(h, ":") {
		if parsed, err := url.Parse("//" + h); err == nil {
			if parsed.Hostname() != "" {
				h = parsed.Hostname()
			}
		}
	}
	h = strings.TrimSuffix(h, ".")
	return h
}

// pathPrefixes are the youtube.com path shapes that carry the id as the
// following segment.
var pathPrefixes = []string{"/embed/", "/v/", "/shorts/", "/live/"}

// ExtractYouTubeVideoID extracts the YouTube video ID from a URL without
// validating its shape.
func ExtractYouTubeVideoID(urlStr string) (string, error) {
	urlStr = strings.TrimSpace(urlStr)
	if urlStr == "" {
		return "", errors.New("empty url")
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return "", err
	}

	host := normalizeHost(u.Host)
	if ResolveCanonicalDomain(host) != Domain {
		return "", ErrNotYouTube
	}

	// Handle youtu.be shortlinks
	if host == "youtu.be" {
		if id := firstPathSegment(u.Path); id != "" {
			return id, nil
		}
		return "", ErrNotYouTube
	}

	if u.Path == "/watch" || u.Path == "/watch/" {
		if q := strings.TrimSpace(u.Query().Get("v")); q != "" {
			return q, nil
		}
		return "", ErrNotYouTube
	}
	for _, prefix := range pathPrefixes {
		if strings.HasPrefix(u.Path, prefix) {
			if id := firstPathSegment(strings.TrimPrefix(u.Path, prefix)); id != "" {
				return id, nil
			}
		}
	}

	return "", ErrNotYouTube
}

func firstPathSegment(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return ""
	}
	seg, _, _ := strings.Cut(p, "/")
	return strings.TrimSpace(seg)
}
