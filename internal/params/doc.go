// Package params derives the parameter surface of a page: candidate URLs
// of the form base?k1=v1&k2=v2 built from the query strings of the page's
// links and from the named fields of its forms.
//
// # Rebasing
//
// By default every synthesized URL is attached to the page it was found on,
// not to the link or form target that declared the parameters. A link
// <a href="/search?q=x"> on http://a.com/blog yields
// http://a.com/blog?q=x. RebaseOntoLinkTarget attaches the parameters to
// the link's own target (http://a.com/search?q=x) and form fields to the
// form's action instead.
//
// Values are copied verbatim; nothing is escaped or decoded.
package params
