package rules

import (
	"math/bits"
	"strings"

	"github.com/AdguardTeam/filterengine/filterutil"
)

// MaxURLLength limits the URL length by 4 KiB.  It appears that there can be
// URLs longer than a megabyte, and it makes no sense to go through the whole
// URL.
const MaxURLLength = 4 * 1024

// RequestType is the request types enumeration.
type RequestType uint32

const (
	// TypeDocument (main frame)
	TypeDocument RequestType = 1 << iota
	// TypeSubdocument (iframe) $subdocument
	TypeSubdocument
	// TypeScript (javascript, etc) $script
	TypeScript
	// TypeStylesheet (css) $stylesheet
	TypeStylesheet
	// TypeObject (flash, etc) $object
	TypeObject
	// TypeImage (any image) $image
	TypeImage
	// TypeXmlhttprequest (ajax/fetch) $xmlhttprequest
	TypeXmlhttprequest
	// TypeMedia (video/music) $media
	TypeMedia
	// TypeFont (any custom font) $font
	TypeFont
	// TypeWebsocket (a websocket connection) $websocket
	TypeWebsocket
	// TypePing (navigator.sendBeacon() or ping attribute on links) $ping
	TypePing
	// TypeOther - any other request type
	TypeOther
)

// requestTypeNames maps the request type modifiers to their values.
var requestTypeNames = map[string]RequestType{
	"document":       TypeDocument,
	"subdocument":    TypeSubdocument,
	"script":         TypeScript,
	"stylesheet":     TypeStylesheet,
	"object":         TypeObject,
	"image":          TypeImage,
	"xmlhttprequest": TypeXmlhttprequest,
	"xhr":            TypeXmlhttprequest,
	"media":          TypeMedia,
	"font":           TypeFont,
	"websocket":      TypeWebsocket,
	"ping":           TypePing,
	"other":          TypeOther,
}

// ParseRequestType returns the request type by its modifier name, for example
// "script" or "image".
func ParseRequestType(name string) (t RequestType, ok bool) {
	t, ok = requestTypeNames[strings.ToLower(name)]

	return t, ok
}

// Count returns the count of the enabled flags.
func (t RequestType) Count() (n int) {
	return bits.OnesCount32(uint32(t))
}

// Party is the relation between the request and its source.
type Party uint8

// Party values.
const (
	// PartyUnknown means that the request has no source.
	PartyUnknown Party = iota

	// PartyFirst means that the request and its source share the registrable
	// domain.
	PartyFirst

	// PartyThird means that the request and its source have different
	// registrable domains.
	PartyThird
)

// Request represents a web filtering request with all its necessary
// properties.
type Request struct {
	// URL is the full request URL.
	URL string

	// URLLowerCase is the full request URL in lower case.
	URLLowerCase string

	// Hostname is the hostname to filter.
	Hostname string

	// Domain is the effective top-level domain of the request with an
	// additional label.
	Domain string

	// SourceURL is the full URL of the source.
	SourceURL string

	// SourceHostname is the hostname of the source.
	SourceHostname string

	// SourceDomain is the effective top-level domain of the source with an
	// additional label.
	SourceDomain string

	// AppName is the name of the application that made the request.  It is
	// matched against the $app modifier.
	AppName string

	// Subdomains are Hostname and all its parent domains, most specific first.
	Subdomains []string

	// SourceSubdomains are SourceHostname and all its parent domains, most
	// specific first.
	SourceSubdomains []string

	// RequestType is the type of the filtering request.
	RequestType RequestType

	// DNSType is the type of the resource record (RR) of a DNS request, for
	// example [dns.TypeA].  Zero means that the type is unknown.
	DNSType RRType

	// ThirdParty tells if the request is a third-party one.
	ThirdParty Party

	// IsHostnameRequest means that the request is for a given Hostname, and not
	// for a URL, and we don't really know what protocol it is.  This can be
	// true for DNS requests, for HTTP CONNECT, or for SNI matching.
	IsHostnameRequest bool
}

// NewRequest creates a new instance of *Request and populates its fields.
// Both URLs are cut to [MaxURLLength].
func NewRequest(url, sourceURL string, requestType RequestType) (r *Request) {
	if len(url) > MaxURLLength {
		url = url[:MaxURLLength]
	}

	if len(sourceURL) > MaxURLLength {
		sourceURL = sourceURL[:MaxURLLength]
	}

	r = &Request{
		RequestType: requestType,

		URL:          url,
		URLLowerCase: strings.ToLower(url),
		SourceURL:    sourceURL,
	}

	r.Hostname = strings.ToLower(filterutil.ExtractHostname(url))
	r.Domain = domainOrHostname(r.Hostname)
	r.Subdomains = filterutil.Subdomains(r.Hostname)

	r.SourceHostname = strings.ToLower(filterutil.ExtractHostname(sourceURL))
	if r.SourceHostname != "" {
		r.SourceDomain = domainOrHostname(r.SourceHostname)
		r.SourceSubdomains = filterutil.Subdomains(r.SourceHostname)

		if r.SourceDomain != r.Domain {
			r.ThirdParty = PartyThird
		} else {
			r.ThirdParty = PartyFirst
		}
	}

	return r
}

// NewRequestForHostname creates a new instance of *Request for matching the
// hostname.  It uses "http://" as a protocol and [TypeDocument] as a request
// type.
func NewRequestForHostname(hostname string) (r *Request) {
	r = &Request{}
	FillRequestForHostname(r, hostname)

	return r
}

// FillRequestForHostname fills an instance of request r for matching the
// hostname.  It uses "http://" as a protocol for request URL and [TypeDocument]
// as request type.  Hostname validation should be performed by the caller.
func FillRequestForHostname(r *Request, hostname string) {
	urlStr := "http://" + hostname

	r.URL = urlStr
	r.URLLowerCase = strings.ToLower(urlStr)
	r.Hostname = hostname
	r.Domain = domainOrHostname(hostname)
	r.Subdomains = filterutil.Subdomains(hostname)

	r.SourceURL = ""
	r.SourceHostname = ""
	r.SourceDomain = ""
	r.SourceSubdomains = nil

	r.RequestType = TypeDocument
	r.ThirdParty = PartyUnknown
	r.IsHostnameRequest = true
}

// domainOrHostname returns the registrable domain of hostname or hostname
// itself, if it has none.
func domainOrHostname(hostname string) (domain string) {
	if domain = effectiveTLDPlusOne(hostname); domain != "" {
		return domain
	}

	return hostname
}
