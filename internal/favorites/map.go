package favorites

import (
	"net/url"
	"strings"

	"github.com/alfredjeanlab/vitro/internal/model"
)

// Targets are the objects a favorite can point at, in lookup order.
var Targets = []string{"person", "company"}

// LogoURL returns the avatar of a company with the given domain, or "".
func LogoURL(domain string) string {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return ""
	}
	return "https://www.google.com/s2/favicons?domain=" + url.QueryEscape(domain)
}

// MapFavorites turns favorite records into Favorites. A favorite's target is
// read from its expanded relation (person, company) when present, else from
// the "<target>Id" foreign key. Records without a target are dropped.
func MapFavorites(nodes []model.Record) []model.Favorite {
	out := make([]model.Favorite, 0, len(nodes))
	for _, n := range nodes {
		fav, ok := mapFavorite(n)
		if ok {
			out = append(out, fav)
		}
	}
	return out
}

func mapFavorite(n model.Record) (model.Favorite, bool) {
	position, _ := n.Float("position")
	fav := model.Favorite{
		ID:                n.ID(),
		Position:          position,
		WorkspaceMemberID: n.String("workspaceMemberId"),
	}

	for _, target := range Targets {
		if rel, ok := n[target].(map[string]any); ok && rel != nil {
			describe(&fav, target, model.Record(rel))
			return fav, fav.RecordID != ""
		}
	}
	for _, target := range Targets {
		if id := n.String(target + "Id"); id != "" {
			describe(&fav, target, model.Record{"id": id})
			return fav, true
		}
	}
	return fav, false
}

func describe(fav *model.Favorite, target string, rec model.Record) {
	fav.RecordID = rec.ID()
	fav.TargetObject = target
	fav.Link = "/object/" + target + "/" + rec.ID()
	switch target {
	case "person":
		fav.AvatarType = model.AvatarRounded
		fav.AvatarURL = rec.String("avatarUrl")
		if name, ok := rec["name"].(map[string]any); ok {
			first, _ := name["firstName"].(string)
			last, _ := name["lastName"].(string)
			fav.LabelIdentifier = strings.TrimSpace(first + " " + last)
		}
	case "company":
		fav.AvatarType = model.AvatarSquared
		fav.AvatarURL = LogoURL(rec.String("domainName"))
		fav.LabelIdentifier = rec.String("name")
	}
}
