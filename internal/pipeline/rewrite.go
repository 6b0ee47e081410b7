package pipeline

import "regexp"

// RewriteRule is one entry of a rewrite directive's ordered rule list
// (spec §4.2 "a dedicated rewriter runs before routing").
type RewriteRule struct {
	Pattern            *regexp.Regexp
	Replacement        string
	RequireNotFile     bool
	RequireNotDir      bool
	Last               bool
	AllowDoubleSlashes bool
}

// Rewriter evaluates an ordered list of RewriteRules against a request
// path, consulting a FileExistsCache for the filesystem-type
// requirements.
type Rewriter struct {
	Rules   []RewriteRule
	WebRoot string
	Cache   *FileExistsCache
}

// Rewrite applies the rule list to path in order, returning the final
// path and whether any rule matched and changed it. The original path
// is not returned or recorded anywhere; only the caller's own copy of
// the path it passed in keeps it.
func (rw *Rewriter) Rewrite(path string) (rewritten string, changed bool) {
	current := path
	if !rw.allowsDoubleSlashes() {
		current = SanitizeURL(current)
	}

	for _, rule := range rw.Rules {
		if rule.RequireNotFile || rule.RequireNotDir {
			exists, isDir := rw.Cache.Stat(rw.WebRoot, current)
			if rule.RequireNotFile && exists && !isDir {
				continue // requirement violated: path IS a file
			}
			if rule.RequireNotDir && exists && isDir {
				continue // requirement violated: path IS a directory
			}
		}

		if !rule.Pattern.MatchString(current) {
			continue
		}
		next := rule.Pattern.ReplaceAllString(current, rule.Replacement)
		if next != current {
			current = next
			changed = true
		}
		if rule.Last && changed {
			break
		}
	}
	return current, changed
}

func (rw *Rewriter) allowsDoubleSlashes() bool {
	for _, r := range rw.Rules {
		if r.AllowDoubleSlashes {
			return true
		}
	}
	return false
}
