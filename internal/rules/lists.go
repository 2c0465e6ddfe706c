package rules

// Built-in reputation lists. Group config may extend but not shrink these;
// the categories feed the violation reasons verbatim.
var suspiciousDomains = map[string][]string{
	"shorteners": {
		"bit.ly", "tinyurl.com", "shorturl.at", "ow.ly", "t.co",
		"goo.gl", "buff.ly", "tiny.cc", "is.gd", "v.gd",
	},
	"gambling": {
		"bet365.com", "pokerstars.com", "888casino.com", "betfair.com",
		"williamhill.com", "ladbrokes.com", "bwin.com",
	},
	"adult": {
		"pornhub.com", "xvideos.com", "xnxx.com", "redtube.com",
		"youporn.com", "tube8.com", "spankbang.com",
	},
	"scam": {
		"earn-money-fast.com", "free-bitcoin.com", "get-rich-quick.net",
		"miracle-cure.org", "weight-loss-secret.com",
	},
}

// defaultBannedWords applies when a group has no list of its own and the
// banned-words feature flag is on.
var defaultBannedWords = []string{
	"spam", "scam", "fake", "fraud", "cheat", "hack",
	"buy now", "limited time", "act fast", "exclusive offer",
	"free money", "easy money", "guaranteed profit",
	"porn", "xxx", "adult", "nsfw", "nude",
	"bet", "casino", "poker", "gambling", "lottery",
}

// dangerousExtensions violate regardless of any other media setting.
var dangerousExtensions = []string{
	".exe", ".bat", ".cmd", ".scr", ".pif", ".com", ".jar", ".sh",
}
