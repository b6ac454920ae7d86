package airplay2

import (
	"github.com/jburnhams/airplay2/pkg/bplist"
	"github.com/jburnhams/airplay2/pkg/discovery"
)

// LocalDevice describes the capabilities a Receiver advertises and serves
// from GET /info.
type LocalDevice struct {
	Name string

	RAOP     discovery.RAOPCapabilities
	AirPlay2 discovery.AirPlay2Capabilities
}

// InfoBody builds the bplist dictionary served from GET /info: deviceid,
// features, model, pk, pi, srcvers are required; name, protovers, audioFormats,
// supportsPTP are strongly recommended.
func (d LocalDevice) InfoBody() bplist.Value {
	formats := make([]bplist.Value, 0, len(d.AirPlay2.AudioFormats))
	for _, f := range d.AirPlay2.AudioFormats {
		rates := make([]bplist.Value, len(f.SampleRates))
		for i, r := range f.SampleRates {
			rates[i] = bplist.NewInt(int64(r))
		}
		depths := make([]bplist.Value, len(f.BitDepths))
		for i, b := range f.BitDepths {
			depths[i] = bplist.NewInt(int64(b))
		}
		formats = append(formats, bplist.NewDict(map[string]bplist.Value{
			"type": bplist.NewInt(int64(f.FormatID)),
			"ch":   bplist.NewInt(int64(f.Channels)),
			"sr":   bplist.NewArray(rates...),
			"ss":   bplist.NewArray(depths...),
			"et":   bplist.NewInt(int64(f.EncryptionType)),
		}))
	}

	pi := d.AirPlay2.PairingID
	if pi == "" {
		pi = discovery.DerivePairingID(d.AirPlay2.DeviceID)
	}

	return bplist.NewDict(map[string]bplist.Value{
		"deviceid":     bplist.NewString(d.AirPlay2.DeviceID),
		"features":     bplist.NewInt(int64(d.AirPlay2.Features)),
		"model":        bplist.NewString(d.AirPlay2.Model),
		"pk":           bplist.NewBytes(d.AirPlay2.PublicKey[:]),
		"pi":           bplist.NewString(pi),
		"srcvers":      bplist.NewString(d.AirPlay2.SourceVersion),
		"name":         bplist.NewString(d.Name),
		"protovers":    bplist.NewString(d.AirPlay2.ProtocolVer),
		"audioFormats": bplist.NewArray(formats...),
		"supportsPTP":  bplist.NewBool(d.AirPlay2.SupportsPTP),
	})
}
