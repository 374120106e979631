package snmpinfo

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"
)

// Column naming modes of a table definition.
const (
	ModeManualMultiLevel = "manual-multi-level"
	ModeAutoSingleLevel  = "auto-single-level"
)

// Output styles for auto-single-level tables.
const (
	StyleList = "list"
	StyleDict = "dict"
)

// ErrInvalidColumnNameMode rejects a table with an unknown ColumnNameMode.
var ErrInvalidColumnNameMode = errors.New("invalid configuration: INVALID_COLUMN_NAME_MODE")

// TableConfig is one entry of SnmpTableDictionary.
type TableConfig struct {
	BaseOid               string         `json:"BaseOid"`
	Columns               map[string]int `json:"Columns,omitempty"`
	ColumnNameMode        string         `json:"ColumnNameMode,omitempty"`
	ColumnNamePrefix      string         `json:"ColumnNamePrefix,omitempty"`
	SingleLevelTableStyle string         `json:"SingleLevelTableStyle,omitempty"`
}

// Entry is one auto-single-level list item.
type Entry struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

// decoder turns table OID suffixes into rows.
type decoder interface {
	// start returns the OID the walk begins after.
	start(base string) string
	add(suffix string, value any)
	result() any
}

func newDecoder(cfg TableConfig, logger *zap.Logger) (decoder, error) {
	mode := cfg.ColumnNameMode
	if mode == "" {
		mode = ModeManualMultiLevel
	}
	switch mode {
	case ModeManualMultiLevel:
		if len(cfg.Columns) == 0 {
			return nil, fmt.Errorf("invalid configuration: %s table without Columns", ModeManualMultiLevel)
		}
		d := &multiLevel{names: make(map[int]string, len(cfg.Columns)), index: make(map[string]int)}
		first := true
		for name, id := range cfg.Columns {
			d.names[id] = name
			if first || id < d.lowest {
				d.lowest = id
				first = false
			}
		}
		return d, nil
	case ModeAutoSingleLevel:
		d := &singleLevel{prefix: cfg.ColumnNamePrefix, logger: logger}
		switch cfg.SingleLevelTableStyle {
		case "", StyleList:
		case StyleDict:
			d.dict = make(map[string]any)
		default:
			return nil, fmt.Errorf("invalid configuration: SingleLevelTableStyle %q", cfg.SingleLevelTableStyle)
		}
		return d, nil
	default:
		return nil, ErrInvalidColumnNameMode
	}
}

// multiLevel decodes "<column-id>.<row-key>" suffixes. Rows keep the order
// in which their key was first seen.
type multiLevel struct {
	names  map[int]string
	lowest int
	rows   []map[string]any
	index  map[string]int
}

func (d *multiLevel) start(base string) string {
	return base + "." + strconv.Itoa(d.lowest)
}

func (d *multiLevel) add(suffix string, value any) {
	col, key, ok := strings.Cut(suffix, ".")
	if !ok || key == "" {
		return
	}
	id, err := strconv.Atoi(col)
	if err != nil {
		return
	}
	name, mapped := d.names[id]
	if !mapped {
		return
	}
	if i, seen := d.index[key]; seen {
		d.rows[i][name] = value
		return
	}
	d.index[key] = len(d.rows)
	d.rows = append(d.rows, map[string]any{name: value})
}

func (d *multiLevel) result() any {
	if d.rows == nil {
		return []map[string]any{}
	}
	return d.rows
}

// singleLevel decodes single-index suffixes into prefix+index names.
type singleLevel struct {
	prefix  string
	entries []Entry
	dict    map[string]any
	logger  *zap.Logger
}

func (d *singleLevel) start(base string) string { return base }

func (d *singleLevel) add(suffix string, value any) {
	idx, err := strconv.Atoi(suffix)
	if err != nil {
		d.logger.Error("not a valid single level table index", zap.String("suffix", suffix))
		return
	}
	name := d.prefix + strconv.Itoa(idx)
	if d.dict != nil {
		d.dict[name] = value
		return
	}
	d.entries = append(d.entries, Entry{Name: name, Value: value})
}

func (d *singleLevel) result() any {
	if d.dict != nil {
		return d.dict
	}
	if d.entries == nil {
		return []Entry{}
	}
	return d.entries
}

// pageFunc returns up to pageSize bindings lexicographically after from.
type pageFunc func(from string) ([]gosnmp.SnmpPDU, error)

// walkTable pages through the table under cfg.BaseOid. The walk stops on
// the first binding outside the table, on endOfMibView, on an empty or
// short page, or when a page makes no progress past the requested OID.
func walkTable(cfg TableConfig, pageSize int, next pageFunc, logger *zap.Logger) (any, error) {
	base := normalizeOID(cfg.BaseOid)
	if base == "" {
		return nil, errors.New("invalid configuration: empty BaseOid")
	}
	dec, err := newDecoder(cfg, logger)
	if err != nil {
		return nil, err
	}

	prefix := base + "."
	from := dec.start(base)
	for {
		logger.Debug("requesting table page", zap.String("oid", from), zap.Int("size", pageSize))
		pdus, err := next(from)
		if err != nil {
			return nil, err
		}
		if len(pdus) == 0 {
			break
		}

		done := false
		last := from
		for _, pdu := range pdus {
			oid := normalizeOID(pdu.Name)
			if pdu.Type == gosnmp.EndOfMibView || !strings.HasPrefix(oid, prefix) {
				logger.Debug("end of table", zap.String("oid", oid))
				done = true
				break
			}
			dec.add(oid[len(prefix):], pduValue(pdu))
			last = oid
		}
		if done {
			break
		}
		if len(pdus) < pageSize {
			// Agents may trim GETBULK responses to their message size limit,
			// so a short page can hide remaining rows.
			if pageSize > 1 {
				logger.Debug("short table page, ending walk",
					zap.String("last_oid", last),
					zap.Int("received", len(pdus)),
					zap.Int("size", pageSize),
				)
			}
			break
		}
		if compareOIDs(last, from) <= 0 {
			logger.Warn("agent returned non-increasing OID, stopping walk",
				zap.String("requested", from),
				zap.String("received", last),
			)
			break
		}
		from = last
	}
	return dec.result(), nil
}

// bulkPager pages with GETBULK (SNMPv2c).
func bulkPager(c Client, pageSize int) pageFunc {
	return func(from string) ([]gosnmp.SnmpPDU, error) {
		pkt, err := c.GetBulk([]string{from}, 0, uint32(pageSize))
		if err != nil {
			return nil, err
		}
		if pkt.Error != gosnmp.NoError {
			return nil, packetError(pkt)
		}
		return pkt.Variables, nil
	}
}

// nextPager pages with up to pageSize sequential GETNEXT requests
// (SNMPv1). noSuchName marks the end of the MIB view.
func nextPager(c Client, pageSize int) pageFunc {
	return func(from string) ([]gosnmp.SnmpPDU, error) {
		var out []gosnmp.SnmpPDU
		cur := from
		for len(out) < pageSize {
			pkt, err := c.GetNext([]string{cur})
			if err != nil {
				return nil, err
			}
			if pkt.Error == gosnmp.NoSuchName || len(pkt.Variables) == 0 {
				break
			}
			if pkt.Error != gosnmp.NoError {
				return nil, packetError(pkt)
			}
			pdu := pkt.Variables[0]
			out = append(out, pdu)
			if pdu.Type == gosnmp.EndOfMibView {
				break
			}
			cur = normalizeOID(pdu.Name)
		}
		return out, nil
	}
}

func packetError(pkt *gosnmp.SnmpPacket) error {
	at := "?"
	if i := int(pkt.ErrorIndex); i > 0 && i <= len(pkt.Variables) {
		at = normalizeOID(pkt.Variables[i-1].Name)
	}
	return fmt.Errorf("snmp error: %v at %s", pkt.Error, at)
}

// normalizeOID strips the leading dot gosnmp puts on OIDs.
func normalizeOID(oid string) string {
	return strings.TrimPrefix(strings.TrimSpace(oid), ".")
}

// compareOIDs orders OIDs by numeric sub-identifiers.
func compareOIDs(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		x, errX := strconv.ParseUint(as[i], 10, 64)
		y, errY := strconv.ParseUint(bs[i], 10, 64)
		if errX != nil || errY != nil {
			if c := strings.Compare(as[i], bs[i]); c != 0 {
				return c
			}
			continue
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	return len(as) - len(bs)
}

// pduValue converts a binding value into a JSON-friendly form.
func pduValue(pdu gosnmp.SnmpPDU) any {
	switch pdu.Type {
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.Null, gosnmp.EndOfMibView:
		return nil
	case gosnmp.ObjectIdentifier:
		if s, ok := pdu.Value.(string); ok {
			return normalizeOID(s)
		}
	}
	switch v := pdu.Value.(type) {
	case []byte:
		return octetString(v)
	default:
		return v
	}
}

// octetString returns printable text as-is and anything else (MAC
// addresses, bit strings) as 0x-prefixed hex.
func octetString(b []byte) string {
	if !utf8.Valid(b) {
		return "0x" + hex.EncodeToString(b)
	}
	for _, r := range string(b) {
		if !unicode.IsPrint(r) && r != '\t' && r != '\n' && r != '\r' {
			return "0x" + hex.EncodeToString(b)
		}
	}
	return string(b)
}

// pduString renders a binding as text for the scalar info map.
func pduString(pdu gosnmp.SnmpPDU) string {
	v := pduValue(pdu)
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// sortedKeys returns map keys in order so requests are deterministic.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
