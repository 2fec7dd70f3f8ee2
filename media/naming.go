package media

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"path"
	"strconv"
)

// Variant is one stored rendition of an image.
type Variant string

const (
	VariantBase   Variant = "base"
	VariantMedium Variant = "medium"
	VariantSmall  Variant = "small"
)

// Variants lists every rendition in upload order.
var Variants = []Variant{VariantBase, VariantMedium, VariantSmall}

// Extension is the stored format of every variant.
const Extension = "jpg"

// Name returns the deterministic stored name of a source image. It hashes
// the account, the listing code and the source file name, so a re-run of the
// same feed maps to the same name and the image is not fetched again, while
// a CDN host change alone does not count as a new image.
func Name(accountID int64, listingCode, sourceURL string) string {
	file := sourceURL
	if u, err := url.Parse(sourceURL); err == nil && u.Path != "" {
		file = path.Base(u.Path)
		if u.RawQuery != "" {
			file += "?" + u.RawQuery
		}
	}
	sum := sha1.Sum([]byte(strconv.FormatInt(accountID, 10) + "|" + listingCode + "|" + file))
	return hex.EncodeToString(sum[:]) + "." + Extension
}

// Key returns the object storage key of a variant:
// images/{name}, images/medium/{name} or images/small/{name}.
func Key(name string, v Variant) string {
	if v == VariantBase {
		return "images/" + name
	}
	return "images/" + string(v) + "/" + name
}

// Keys returns the keys of every variant of name.
func Keys(name string) []string {
	keys := make([]string, len(Variants))
	for i, v := range Variants {
		keys[i] = Key(name, v)
	}
	return keys
}
