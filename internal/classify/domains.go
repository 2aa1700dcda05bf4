package classify

import "strings"

// nonJobDomains are hosts that never serve job postings the pipeline can
// use. A match short-circuits classification to irrelevant before any
// scorer runs.
var nonJobDomains = []string{
	"facebook.com",
	"instagram.com",
	"twitter.com",
	"x.com",
	"youtube.com",
	"tiktok.com",
	"pinterest.com",
	"reddit.com",
	"wikipedia.org",
	"medium.com",
	"quora.com",
	"amazon.com",
	"ebay.com",
	"netflix.com",
	"spotify.com",
	"twitch.tv",
	"github.io",
}

// knownNonJobDomain returns the matched domain when host belongs to a
// known non-job site, or "" otherwise. Subdomains match their parent.
func knownNonJobDomain(host string) string {
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	for _, domain := range nonJobDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return domain
		}
	}
	return ""
}
