package types

// Sonstig is the escape hatch every guarded vocabulary carries. Values that
// collectors push but the vocabulary does not know yet arrive as sonstig and
// are reported so a human can extend the vocabulary.
const Sonstig = "sonstig"

// Parlament identifies a federal or state parliament.
type Parlament string

const (
	ParlamentBT Parlament = "BT" // Bundestag
	ParlamentBR Parlament = "BR" // Bundesrat
	ParlamentBV Parlament = "BV" // Bundesversammlung
	ParlamentEK Parlament = "EK" // Europakammer des Bundesrats
	ParlamentBB Parlament = "BB"
	ParlamentBY Parlament = "BY"
	ParlamentBE Parlament = "BE"
	ParlamentBW Parlament = "BW"
	ParlamentHB Parlament = "HB"
	ParlamentHH Parlament = "HH"
	ParlamentHE Parlament = "HE"
	ParlamentMV Parlament = "MV"
	ParlamentNI Parlament = "NI"
	ParlamentNW Parlament = "NW"
	ParlamentRP Parlament = "RP"
	ParlamentSL Parlament = "SL"
	ParlamentSN Parlament = "SN"
	ParlamentST Parlament = "ST"
	ParlamentSH Parlament = "SH"
	ParlamentTH Parlament = "TH"
)

var parlamente = []Parlament{
	ParlamentBT, ParlamentBR, ParlamentBV, ParlamentEK,
	ParlamentBB, ParlamentBY, ParlamentBE, ParlamentBW, ParlamentHB,
	ParlamentHH, ParlamentHE, ParlamentMV, ParlamentNI, ParlamentNW,
	ParlamentRP, ParlamentSL, ParlamentSN, ParlamentST, ParlamentSH,
	ParlamentTH,
}

// IsValid reports whether p is a known parliament code.
func (p Parlament) IsValid() bool {
	for _, k := range parlamente {
		if p == k {
			return true
		}
	}
	return false
}

// Parlamente returns all known parliament codes.
func Parlamente() []Parlament { return append([]Parlament(nil), parlamente...) }

// Vorgangstyp classifies a legislative process.
type Vorgangstyp string

const (
	VorgangstypGGEinspruch   Vorgangstyp = "gg-einspruch"   // Einspruchsgesetz
	VorgangstypGGZustimmung  Vorgangstyp = "gg-zustimmung"  // Zustimmungsgesetz
	VorgangstypGGLandParl    Vorgangstyp = "gg-land-parl"   // Landesgesetz, parlamentarisch
	VorgangstypGGLandVolk    Vorgangstyp = "gg-land-volk"   // Landesgesetz, Volksgesetzgebung
	VorgangstypBWEinsatz     Vorgangstyp = "bw-einsatz"     // Bundeswehreinsatz
	VorgangstypSonstig       Vorgangstyp = Sonstig
)

var vorgangstypen = []Vorgangstyp{
	VorgangstypGGEinspruch, VorgangstypGGZustimmung, VorgangstypGGLandParl,
	VorgangstypGGLandVolk, VorgangstypBWEinsatz, VorgangstypSonstig,
}

func (v Vorgangstyp) IsValid() bool {
	for _, k := range vorgangstypen {
		if v == k {
			return true
		}
	}
	return false
}

func Vorgangstypen() []Vorgangstyp { return append([]Vorgangstyp(nil), vorgangstypen...) }

// Stationstyp classifies a procedural station within a Vorgang.
// The prefix encodes the phase: preparl (before parliament), parl (in
// parliament), postparl (after the parliamentary decision).
type Stationstyp string

const (
	StationstypPreparlRegent  Stationstyp = "preparl-regent"  // Referentenentwurf
	StationstypPreparlEckpup  Stationstyp = "preparl-eckpup"  // Eckpunktepapier
	StationstypPreparlRegbsl  Stationstyp = "preparl-regbsl"  // Kabinettsbeschluss
	StationstypPreparlVbegde  Stationstyp = "preparl-vbegde"  // Volksbegehren
	StationstypParlInitiativ  Stationstyp = "parl-initiativ"  // Gesetzesinitiative
	StationstypParlAusschber  Stationstyp = "parl-ausschber"  // Ausschussberatung
	StationstypParlVollvlsgn  Stationstyp = "parl-vollvlsgn"  // Vollversammlung / Lesung
	StationstypParlAkzeptanz  Stationstyp = "parl-akzeptanz"  // Schlussabstimmung, angenommen
	StationstypParlAblehnung  Stationstyp = "parl-ablehnung"  // Schlussabstimmung, abgelehnt
	StationstypParlZurueckgz  Stationstyp = "parl-zurueckgz"  // Zurückgezogen
	StationstypParlGgentwurf  Stationstyp = "parl-ggentwurf"  // Gegenentwurf des Parlaments
	StationstypPostparlVesja  Stationstyp = "postparl-vesja"  // Volksentscheid, angenommen
	StationstypPostparlVesne  Stationstyp = "postparl-vesne"  // Volksentscheid, abgelehnt
	StationstypPostparlGsblt  Stationstyp = "postparl-gsblt"  // Veröffentlichung im Gesetzblatt
	StationstypPostparlKraft  Stationstyp = "postparl-kraft"  // Inkrafttreten
	StationstypSonstig        Stationstyp = Sonstig
)

var stationstypen = []Stationstyp{
	StationstypPreparlRegent, StationstypPreparlEckpup, StationstypPreparlRegbsl,
	StationstypPreparlVbegde, StationstypParlInitiativ, StationstypParlAusschber,
	StationstypParlVollvlsgn, StationstypParlAkzeptanz, StationstypParlAblehnung,
	StationstypParlZurueckgz, StationstypParlGgentwurf, StationstypPostparlVesja,
	StationstypPostparlVesne, StationstypPostparlGsblt, StationstypPostparlKraft,
	StationstypSonstig,
}

func (s Stationstyp) IsValid() bool {
	for _, k := range stationstypen {
		if s == k {
			return true
		}
	}
	return false
}

func Stationstypen() []Stationstyp { return append([]Stationstyp(nil), stationstypen...) }

// Doktyp classifies a Dokument.
type Doktyp string

const (
	DoktypEntwurf       Doktyp = "entwurf"
	DoktypDrucksache    Doktyp = "drucksache"
	DoktypProtokoll     Doktyp = "protokoll"
	DoktypTopliste      Doktyp = "topliste"
	DoktypStellungnahme Doktyp = "stellungnahme"
	DoktypRede          Doktyp = "rede"
	DoktypBeschlussempf Doktyp = "beschlussempf"
	DoktypMitteilung    Doktyp = "mitteilung"
	DoktypSonstig       Doktyp = Sonstig
)

var doktypen = []Doktyp{
	DoktypEntwurf, DoktypDrucksache, DoktypProtokoll, DoktypTopliste,
	DoktypStellungnahme, DoktypRede, DoktypBeschlussempf, DoktypMitteilung,
	DoktypSonstig,
}

func (d Doktyp) IsValid() bool {
	for _, k := range doktypen {
		if d == k {
			return true
		}
	}
	return false
}

func Doktypen() []Doktyp { return append([]Doktyp(nil), doktypen...) }

// VgIdentTyp classifies an external identifier attached to a Vorgang.
type VgIdentTyp string

const (
	VgIdentTypInitdrucks VgIdentTyp = "initdrucks" // Drucksnr of the initiating document
	VgIdentTypVorgnr     VgIdentTyp = "vorgnr"     // parliament-assigned process number
	VgIdentTypAPIID      VgIdentTyp = "api-id"     // foreign system identifier
	VgIdentTypSonstig    VgIdentTyp = Sonstig
)

var vgIdentTypen = []VgIdentTyp{
	VgIdentTypInitdrucks, VgIdentTypVorgnr, VgIdentTypAPIID, VgIdentTypSonstig,
}

func (v VgIdentTyp) IsValid() bool {
	for _, k := range vgIdentTypen {
		if v == k {
			return true
		}
	}
	return false
}

func VgIdentTypen() []VgIdentTyp { return append([]VgIdentTyp(nil), vgIdentTypen...) }

// EnumName identifies one of the parametric controlled vocabularies exposed
// under /enumeration/{name}.
type EnumName string

const (
	EnumSchlagworte     EnumName = "schlagworte"
	EnumStationstypen   EnumName = "stationstypen"
	EnumParlamente      EnumName = "parlamente"
	EnumVorgangstypen   EnumName = "vorgangstypen"
	EnumDokumententypen EnumName = "dokumententypen"
	EnumVgIdTypen       EnumName = "vgidtypen"
)

func (e EnumName) IsValid() bool {
	switch e {
	case EnumSchlagworte, EnumStationstypen, EnumParlamente,
		EnumVorgangstypen, EnumDokumententypen, EnumVgIdTypen:
		return true
	}
	return false
}
