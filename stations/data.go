package stations

// defaultStations covers the major national rail stations. Deployments with
// the full station-codes file should load it with LoadDirectory instead.
var defaultStations = []Station{
	{CRS: "ABD", Name: "Aberdeen"},
	{CRS: "BTH", Name: "Bath Spa"},
	{CRS: "BDM", Name: "Bedford"},
	{CRS: "BHM", Name: "Birmingham New Street"},
	{CRS: "BMH", Name: "Bournemouth"},
	{CRS: "BTN", Name: "Brighton"},
	{CRS: "BRI", Name: "Bristol Temple Meads"},
	{CRS: "CBG", Name: "Cambridge"},
	{CRS: "CDF", Name: "Cardiff Central"},
	{CRS: "CLJ", Name: "Clapham Junction"},
	{CRS: "COV", Name: "Coventry"},
	{CRS: "CRE", Name: "Crewe"},
	{CRS: "DBY", Name: "Derby"},
	{CRS: "DON", Name: "Doncaster"},
	{CRS: "DUR", Name: "Durham"},
	{CRS: "ECR", Name: "East Croydon"},
	{CRS: "EDB", Name: "Edinburgh Waverley"},
	{CRS: "EXD", Name: "Exeter St Davids"},
	{CRS: "GTW", Name: "Gatwick Airport"},
	{CRS: "GLC", Name: "Glasgow Central"},
	{CRS: "GLQ", Name: "Glasgow Queen Street"},
	{CRS: "HHE", Name: "Haywards Heath"},
	{CRS: "HOV", Name: "Hove"},
	{CRS: "INV", Name: "Inverness"},
	{CRS: "LDS", Name: "Leeds"},
	{CRS: "LEI", Name: "Leicester"},
	{CRS: "LWS", Name: "Lewes"},
	{CRS: "LIV", Name: "Liverpool Lime Street"},
	{CRS: "LBG", Name: "London Bridge"},
	{CRS: "CHX", Name: "London Charing Cross"},
	{CRS: "EUS", Name: "London Euston"},
	{CRS: "KGX", Name: "London Kings Cross"},
	{CRS: "LST", Name: "London Liverpool Street"},
	{CRS: "MYB", Name: "London Marylebone"},
	{CRS: "PAD", Name: "London Paddington"},
	{CRS: "STP", Name: "London St Pancras International"},
	{CRS: "VIC", Name: "London Victoria"},
	{CRS: "WAT", Name: "London Waterloo"},
	{CRS: "LTN", Name: "Luton"},
	{CRS: "MAN", Name: "Manchester Piccadilly"},
	{CRS: "MCV", Name: "Manchester Victoria"},
	{CRS: "NCL", Name: "Newcastle"},
	{CRS: "NRW", Name: "Norwich"},
	{CRS: "NOT", Name: "Nottingham"},
	{CRS: "OXF", Name: "Oxford"},
	{CRS: "PBO", Name: "Peterborough"},
	{CRS: "PLY", Name: "Plymouth"},
	{CRS: "PMS", Name: "Portsmouth and Southsea"},
	{CRS: "PRE", Name: "Preston"},
	{CRS: "RDG", Name: "Reading"},
	{CRS: "SAC", Name: "St Albans City"},
	{CRS: "SHF", Name: "Sheffield"},
	{CRS: "SOU", Name: "Southampton Central"},
	{CRS: "SWA", Name: "Swansea"},
	{CRS: "YRK", Name: "York"},
}
