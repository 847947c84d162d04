package models

// DefaultCountry is stored on addresses that do not name one.
const DefaultCountry = "Egypt"

// Transportation modes a tasker can declare.
var TransportationChoices = map[string]string{
	"B": "Bicycle",
	"C": "Car",
	"M": "Motorcycle",
	"P": "Public transport",
	"T": "Truck",
	"W": "Walking",
}

var GenderChoices = map[string]string{
	"M": "Male",
	"F": "Female",
}

// GovernorateChoices keys are ISO 3166-2:EG subdivision codes.
var GovernorateChoices = map[string]string{
	"ALX": "Alexandria",
	"ASN": "Aswan",
	"AST": "Asyut",
	"BA":  "Red Sea",
	"BH":  "Beheira",
	"BNS": "Beni Suef",
	"C":   "Cairo",
	"DK":  "Dakahlia",
	"DT":  "Damietta",
	"FYM": "Faiyum",
	"GH":  "Gharbia",
	"GZ":  "Giza",
	"IS":  "Ismailia",
	"JS":  "South Sinai",
	"KB":  "Qalyubia",
	"KFS": "Kafr El Sheikh",
	"KN":  "Qena",
	"LX":  "Luxor",
	"MN":  "Minya",
	"MNF": "Monufia",
	"MT":  "Matrouh",
	"PTS": "Port Said",
	"SHG": "Sohag",
	"SHR": "Al Sharqia",
	"SIN": "North Sinai",
	"SUZ": "Suez",
	"WAD": "New Valley",
}
