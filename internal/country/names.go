package country

// builtin maps folded country names and common spellings to ISO 3166-1
// alpha-2 codes. Keys must already be in folded form (see fold).
var builtin = map[string]string{
	"austria": "AT", "osterreich": "AT",
	"belgium": "BE", "belgie": "BE", "belgique": "BE", "belgien": "BE",
	"bulgaria": "BG", "balgariya": "BG",
	"croatia": "HR", "hrvatska": "HR",
	"cyprus": "CY", "kypros": "CY",
	"czech republic": "CZ", "czechia": "CZ", "cesko": "CZ", "ceska republika": "CZ",
	"denmark": "DK", "danmark": "DK",
	"estonia": "EE", "eesti": "EE",
	"finland": "FI", "suomi": "FI",
	"france": "FR",
	"germany": "DE", "deutschland": "DE",
	"greece": "GR", "ellada": "GR", "hellas": "GR",
	"hungary": "HU", "magyarorszag": "HU",
	"ireland": "IE", "eire": "IE",
	"italy": "IT", "italia": "IT",
	"latvia": "LV", "latvija": "LV",
	"lithuania": "LT", "lietuva": "LT",
	"luxembourg": "LU", "luxemburg": "LU", "letzebuerg": "LU",
	"malta": "MT",
	"netherlands": "NL", "the netherlands": "NL", "nederland": "NL", "holland": "NL",
	"poland": "PL", "polska": "PL",
	"portugal": "PT",
	"romania": "RO",
	"slovakia": "SK", "slovensko": "SK",
	"slovenia": "SI", "slovenija": "SI",
	"spain": "ES", "espana": "ES",
	"sweden": "SE", "sverige": "SE",

	"norway": "NO", "norge": "NO",
	"iceland": "IS", "island": "IS",
	"liechtenstein": "LI",
	"switzerland": "CH", "schweiz": "CH", "suisse": "CH", "svizzera": "CH",
	"united kingdom": "GB", "great britain": "GB", "britain": "GB", "england": "GB",
	"scotland": "GB", "wales": "GB", "northern ireland": "GB",

	// Prefixes that are not ISO region codes.
	"el": "GR",
	"uk": "GB",
}
