// Package rules holds the static tables the capture pipeline is driven by: source whitelists,
// currency aliases, amount and merchant patterns, and keyword sets for type and category
// inference. Tables are compiled once and never mutated afterwards.
package rules

// CategoryRuleConfig maps a keyword set to a category name.
type CategoryRuleConfig struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// Config is the uncompiled, YAML-friendly form of the tables.
type Config struct {
	BankPackages         []string             `yaml:"bank_packages"`
	SMSPackages          []string             `yaml:"sms_packages"`
	SMSSenders           []string             `yaml:"sms_senders"`
	CurrencyAliases      map[string]string    `yaml:"currency_aliases"`
	MinorCurrencyTokens  []string             `yaml:"minor_currency_tokens"`
	IncomeKeywords       []string             `yaml:"income_keywords"`
	ExpenseKeywords      []string             `yaml:"expense_keywords"`
	CategoryRules        []CategoryRuleConfig `yaml:"category_rules"`
	MerchantPrepositions []string             `yaml:"merchant_prepositions"`
	MerchantLabels       []string             `yaml:"merchant_labels"`
}

// DefaultConfig returns the built-in tables for Serbian and regional banks plus English
// templates used by international apps.
func DefaultConfig() Config {
	return Config{
		BankPackages: []string{
			"rs.bancaintesa.mobilebanking",
			"rs.raiffeisenbank.mobile",
			"rs.otpbanka.mobile",
			"rs.erstebank.george",
			"rs.aikbanka.mobile",
			"rs.postanska.mbanking",
			"rs.nlb.klik",
			"ba.unicredit.mobile",
			"com.revolut.revolut",
			"com.transferwise.android",
			"com.paypal.android.p2pmobile",
		},
		SMSPackages: []string{
			"com.google.android.apps.messaging",
			"com.samsung.android.messaging",
			"com.android.mms",
		},
		SMSSenders: []string{
			"Intesa", "Raiffeisen", "OTP", "Erste", "AIK", "UniCredit",
			"Postanska", "NLB", "Addiko", "ProCredit", "Halkbank",
		},
		CurrencyAliases: map[string]string{
			"RSD": "RSD", "РСД": "RSD",
			"DIN": "RSD", "DIN.": "RSD", "DINAR": "RSD", "DINARA": "RSD",
			"ДИН": "RSD", "ДИН.": "RSD", "ДИНАР": "RSD", "ДИНАРА": "RSD",
			"EUR": "EUR", "€": "EUR", "EURO": "EUR", "EURA": "EUR", "EVRA": "EUR", "ЕУР": "EUR", "ЕВРА": "EUR",
			"USD": "USD", "$": "USD", "US$": "USD",
			"GBP": "GBP", "£": "GBP",
			"CHF": "CHF",
			"BAM": "BAM", "KM": "BAM", "KM.": "BAM", "КМ": "BAM",
		},
		MinorCurrencyTokens: []string{
			"DIN", "DIN.", "DINAR", "DINARA", "ДИН", "ДИН.", "ДИНАР", "ДИНАРА", "KM", "KM.", "КМ",
		},
		IncomeKeywords: []string{
			"uplata", "priliv", "odobren", "primljen", "povraćaj", "povracaj", "plata", "zarada",
			"уплата", "прилив", "одобрен", "повраћај",
			"refund", "credited", "received", "deposit", "salary", "incoming",
		},
		ExpenseKeywords: []string{
			"plaćeno", "placeno", "plaćanje", "placanje", "kupovina", "isplata", "zaduženje", "zaduzenje",
			"terećenje", "terecenje", "потрошња", "куповина", "исплата", "плаћено", "задужење",
			"payment", "purchase", "debited", "spent", "withdrawal", "paid", "charged",
		},
		CategoryRules: []CategoryRuleConfig{
			{Category: "Salary", Keywords: []string{"zarada", "zarade", "salary", "payroll", "lični dohodak"}},
			{Category: "Cash", Keywords: []string{"bankomat", "atm withdrawal", "isplata gotovine", "cash withdrawal", "podizanje gotovine"}},
			{Category: "Fuel", Keywords: []string{"omv", "nis petrol", "petrol", "gazprom", "lukoil", "pumpa", "benzinska", "fuel", "gas station", "shell"}},
			{Category: "Groceries", Keywords: []string{"maxi", "lidl", "roda centar", "roda megamarket", "univerexport", "tempo", "aman market", "dis market", "supermarket", "konzum", "bingo", "mercator", "aldi", "spar", "market"}},
			{Category: "Dining", Keywords: []string{"starbucks", "mcdonald", "kfc", "restoran", "restaurant", "caffe", "cafe", "kafe", "pizza", "burger", "glovo", "wolt", "pekara", "bakery", "coffee"}},
			{Category: "Transport", Keywords: []string{"uber", "bolt", "car:go", "taxi", "gsp", "parking", "autoput", "toll road", "yandex go", "busplus"}},
			{Category: "Utilities", Keywords: []string{"elektroprivreda", "eps snabdevanje", "infostan", "telekom", "yettel", "sbb", "vodovod", "orion telekom", "a1 srbija"}},
			{Category: "Health", Keywords: []string{"apoteka", "pharmacy", "benu", "dom zdravlja", "klinika", "hospital", "laboratorija"}},
			{Category: "Entertainment", Keywords: []string{"netflix", "spotify", "hbo", "cineplexx", "bioskop", "steam", "playstation", "youtube"}},
			{Category: "Shopping", Keywords: []string{"amazon", "zara", "h&m", "ikea", "gigatron", "tehnomanija", "aliexpress", "temu.com", "lilly", "dm drogerie"}},
			{Category: "Travel", Keywords: []string{"airbnb", "booking", "air serbia", "wizz", "ryanair", "hotel", "hostel"}},
		},
		MerchantPrepositions: []string{"at", "na", "kod", "u"},
		MerchantLabels: []string{
			"merchant", "trgovac", "prodajno mesto", "mesto", "lokacija", "location", "payee", "primalac",
		},
	}
}

// Merge appends overlay entries after the receiver's, so default rules keep precedence.
func (c Config) Merge(overlay Config) Config {
	out := Config{
		BankPackages:         appendCopy(c.BankPackages, overlay.BankPackages),
		SMSPackages:          appendCopy(c.SMSPackages, overlay.SMSPackages),
		SMSSenders:           appendCopy(c.SMSSenders, overlay.SMSSenders),
		MinorCurrencyTokens:  appendCopy(c.MinorCurrencyTokens, overlay.MinorCurrencyTokens),
		IncomeKeywords:       appendCopy(c.IncomeKeywords, overlay.IncomeKeywords),
		ExpenseKeywords:      appendCopy(c.ExpenseKeywords, overlay.ExpenseKeywords),
		MerchantPrepositions: appendCopy(c.MerchantPrepositions, overlay.MerchantPrepositions),
		MerchantLabels:       appendCopy(c.MerchantLabels, overlay.MerchantLabels),
		CurrencyAliases:      make(map[string]string, len(c.CurrencyAliases)+len(overlay.CurrencyAliases)),
	}
	out.CategoryRules = append(out.CategoryRules, c.CategoryRules...)
	out.CategoryRules = append(out.CategoryRules, overlay.CategoryRules...)
	for k, v := range c.CurrencyAliases {
		out.CurrencyAliases[k] = v
	}
	for k, v := range overlay.CurrencyAliases {
		out.CurrencyAliases[k] = v
	}
	return out
}

func appendCopy(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
