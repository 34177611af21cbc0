package pathmeta

import (
	"path/filepath"
	"regexp"
)

// ContrastIDs are the identifier columns attached to every combined row.
type ContrastIDs struct {
	Subject   string
	Session   string
	Scan      string
	Direction string
	Contrast  string
}

// contrastPattern is looser than derivedPattern: it only needs the session
// directory, the scan directory and the contrast file name.
var contrastPattern = regexp.MustCompile(
	`(?:^|/)([A-Za-z]+[0-9]+)_(V[0-9]+)_MR/(?:[^/]+/)*?` +
		`(tfMRI_[A-Z]+_(AP|PA))/[^/]+\.feat/[^/]+/` +
		`((?:var)?cope[0-9]{1,2})\.[^/]*txt$`,
)

// ParseContrastFile extracts combine-stage identifiers from a derived text file path.
func ParseContrastFile(path string) (ContrastIDs, bool) {
	m := contrastPattern.FindStringSubmatch(filepath.ToSlash(path))
	if m == nil {
		return ContrastIDs{}, false
	}
	return ContrastIDs{
		Subject:   m[1],
		Session:   m[2],
		Scan:      m[3],
		Direction: m[4],
		Contrast:  m[5],
	}, true
}
