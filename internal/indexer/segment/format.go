package segment

// MagicBytes identifies a valid .spdx segment file.
const (
	MagicBytes    uint32 = 0x53504458
	FormatVersion uint32 = 2
	HeaderSize    int    = 64
	FooterSize    int    = 48
)

const (
	currentFile  = "CURRENT"
	lockFile     = "LOCK"
	manifestFile = "MANIFEST.json"
	postingsFile = "postings.spdx"
	storedData   = "stored.dat"
	storedIndex  = "stored.idx"
	buildingExt  = ".building"
)

// SegmentHeader is the 64-byte header written at the start of every segment.
type SegmentHeader struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	DictOffset int64
	DictSize   int64
	PostOffset int64
	PostSize   int64
	NormOffset int64
	NormSize   int64
}

// DictEntry maps a (field, term) pair to its postings offset, length, and
// document frequency in the segment file.
type DictEntry struct {
	Field      string `json:"f"`
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
}

func (d DictEntry) less(field, term string) bool {
	if d.Field != field {
		return d.Field < field
	}
	return d.Term < term
}
