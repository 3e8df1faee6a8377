package domain

// Formats lists every format a card carries a legality flag for.
var Formats = []string{
	"standard",
	"future",
	"historic",
	"timeless",
	"gladiator",
	"pioneer",
	"explorer",
	"modern",
	"legacy",
	"pauper",
	"vintage",
	"penny",
	"commander",
	"oathbreaker",
	"standardbrawl",
	"brawl",
	"alchemy",
	"paupercommander",
	"duel",
	"oldschool",
	"premodern",
}

// BasicLandNames are the canonical front keys of the five basic lands.
var BasicLandNames = []string{"PLAINS", "ISLAND", "SWAMP", "MOUNTAIN", "FOREST"}

func IsKnownFormat(name string) bool {
	for _, f := range Formats {
		if f == name {
			return true
		}
	}
	return false
}

func IsBasicLand(nameFront string) bool {
	for _, n := range BasicLandNames {
		if n == nameFront {
			return true
		}
	}
	return false
}
