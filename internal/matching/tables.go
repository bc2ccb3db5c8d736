package matching

// Synonym and abbreviation tables for semantic header comparison. These
// are process-wide constants: built once at package init and only ever
// read afterwards.

// synonyms maps a canonical header term to its known interchangeable
// terms. The canonical term itself is not a member of its list.
var synonyms = map[string][]string{
	"item_code":     {"part_number", "part_no", "item_id", "sku", "mpn", "manufacturer_part_number"},
	"item_name":     {"description", "name", "title", "component", "part_description"},
	"quantity":      {"qty", "amount", "count", "pieces", "pcs"},
	"unit":          {"uom", "unit_of_measure", "units"},
	"manufacturer":  {"mfg", "maker", "brand", "vendor", "supplier"},
	"specification": {"spec", "properties", "specs", "characteristics"},
	"value":         {"val", "data", "rating", "nominal"},
	"reference":     {"ref", "designator", "ref_des", "location"},
	"type":          {"category", "class", "family", "group"},
	"price":         {"cost", "rate", "price_per_unit", "unit_cost"},
	"voltage":       {"v", "volt", "volts", "vdc", "vac"},
	"current":       {"i", "amp", "amps", "ampere", "ma", "ua"},
	"resistance":    {"r", "ohm", "ohms", "resistance"},
	"capacitance":   {"c", "cap", "farad", "uf", "pf", "nf"},
	"tolerance":     {"tol", "tolerance_percent", "accuracy"},
	"package":       {"footprint", "case", "housing", "form_factor"},
	"temperature":   {"temp", "temp_range", "operating_temp"},
	"power":         {"p", "power_rating", "watts", "w", "power_dissipation"},
}

// abbreviations maps common shorthand to its expansion.
var abbreviations = map[string]string{
	"qty":  "quantity",
	"desc": "description",
	"mfg":  "manufacturer",
	"uom":  "unit",
	"ref":  "reference",
	"spec": "specification",
	"val":  "value",
	"temp": "temperature",
	"vol":  "voltage",
	"cur":  "current",
	"res":  "resistance",
	"cap":  "capacitance",
	"tol":  "tolerance",
}

// synonymSets is the membership index over synonyms, built once.
var synonymSets map[string]map[string]bool

func init() {
	synonymSets = make(map[string]map[string]bool, len(synonyms))
	for canonical, members := range synonyms {
		set := make(map[string]bool, len(members))
		for _, m := range members {
			set[m] = true
		}
		synonymSets[canonical] = set
	}
}

// expand returns the abbreviation expansion of term, or term unchanged.
func expand(term string) string {
	if full, ok := abbreviations[term]; ok {
		return full
	}
	return term
}
