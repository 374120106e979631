package snmpinfo

import (
	"errors"
	"sort"

	"github.com/gosnmp/gosnmp"
)

// fakeAgent is an in-memory SNMP agent over a sorted MIB.
type fakeAgent struct {
	mib       []gosnmp.SnmpPDU
	getErr    error
	walkErr   error
	gets      [][]string
	bulkCalls int
	nextCalls int
	closed    bool
}

func newFakeAgent(vars map[string]any) *fakeAgent {
	a := &fakeAgent{}
	for oid, v := range vars {
		pdu := gosnmp.SnmpPDU{Name: "." + oid, Value: v}
		switch v.(type) {
		case string:
			pdu.Type = gosnmp.OctetString
			pdu.Value = []byte(v.(string))
		case int:
			pdu.Type = gosnmp.Integer
		case uint32:
			pdu.Type = gosnmp.TimeTicks
		}
		a.mib = append(a.mib, pdu)
	}
	sort.Slice(a.mib, func(i, j int) bool {
		return compareOIDs(normalizeOID(a.mib[i].Name), normalizeOID(a.mib[j].Name)) < 0
	})
	return a
}

func (a *fakeAgent) Get(oids []string) (*gosnmp.SnmpPacket, error) {
	a.gets = append(a.gets, oids)
	if a.getErr != nil {
		return nil, a.getErr
	}
	pkt := &gosnmp.SnmpPacket{}
	for _, oid := range oids {
		pdu := gosnmp.SnmpPDU{Name: "." + oid, Type: gosnmp.NoSuchObject}
		for _, v := range a.mib {
			if normalizeOID(v.Name) == oid {
				pdu = v
				break
			}
		}
		pkt.Variables = append(pkt.Variables, pdu)
	}
	return pkt, nil
}

func (a *fakeAgent) after(oid string) (gosnmp.SnmpPDU, bool) {
	for _, v := range a.mib {
		if compareOIDs(normalizeOID(v.Name), normalizeOID(oid)) > 0 {
			return v, true
		}
	}
	return gosnmp.SnmpPDU{}, false
}

func (a *fakeAgent) GetNext(oids []string) (*gosnmp.SnmpPacket, error) {
	a.nextCalls++
	if a.walkErr != nil {
		return nil, a.walkErr
	}
	v, ok := a.after(oids[0])
	if !ok {
		return &gosnmp.SnmpPacket{Error: gosnmp.NoSuchName, ErrorIndex: 1}, nil
	}
	return &gosnmp.SnmpPacket{Variables: []gosnmp.SnmpPDU{v}}, nil
}

func (a *fakeAgent) GetBulk(oids []string, _ uint8, maxReps uint32) (*gosnmp.SnmpPacket, error) {
	a.bulkCalls++
	if a.walkErr != nil {
		return nil, a.walkErr
	}
	pkt := &gosnmp.SnmpPacket{}
	cur := oids[0]
	for len(pkt.Variables) < int(maxReps) {
		v, ok := a.after(cur)
		if !ok {
			pkt.Variables = append(pkt.Variables, gosnmp.SnmpPDU{Name: "." + normalizeOID(cur), Type: gosnmp.EndOfMibView})
			break
		}
		pkt.Variables = append(pkt.Variables, v)
		cur = v.Name
	}
	return pkt, nil
}

func (a *fakeAgent) Close() error {
	a.closed = true
	return nil
}

// agentDialer routes targets to agents by address. Unknown addresses fail
// to connect.
type agentDialer struct {
	agents  map[string]*fakeAgent
	targets []Target
}

func (d *agentDialer) dial(t Target) (Client, error) {
	d.targets = append(d.targets, t)
	a, ok := d.agents[t.Address]
	if !ok {
		return nil, errors.New("no route to host")
	}
	return a, nil
}
