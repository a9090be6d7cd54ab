package attestation

import (
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	tdx_abi "github.com/google/go-tdx-guest/abi"
	tdx_client "github.com/google/go-tdx-guest/client"
	tdx_pb "github.com/google/go-tdx-guest/proto/tdx"
	"github.com/google/go-tdx-guest/verify"
)

// tdAttributesDebug is the TUD.DEBUG bit of TDATTRIBUTES.
const tdAttributesDebug = 0x01

// DCAPAttester produces TDX quotes from the local guest device, or from a
// remote quote provider when RemoteAddress is set, and verifies them with
// go-tdx-guest.
type DCAPAttester struct {
	RemoteAddress string
	// VerifyOptions overrides verify.DefaultOptions when set.
	VerifyOptions *verify.Options
}

func (*DCAPAttester) Type() string { return TypeDCAP }

func (a *DCAPAttester) Produce(reportData [ReportDataSize]byte) ([]byte, error) {
	if a.RemoteAddress != "" {
		return a.produceRemote(reportData)
	}

	qp := &tdx_client.LinuxConfigFsQuoteProvider{}
	if qp.IsSupported() == nil {
		return qp.GetRawQuote(reportData)
	}

	qd, err := tdx_client.OpenDevice()
	if err != nil {
		return nil, fmt.Errorf("opening tdx guest device: %w", err)
	}
	defer qd.Close()

	return tdx_client.GetRawQuote(qd, reportData)
}

func (a *DCAPAttester) produceRemote(reportData [ReportDataSize]byte) ([]byte, error) {
	url := fmt.Sprintf("%s/attest/%s", a.RemoteAddress, hex.EncodeToString(reportData[:]))
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("calling remote quote provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("remote quote provider returned status %d: %s", resp.StatusCode, string(body))
	}

	rawQuote, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading quote from response: %w", err)
	}
	return rawQuote, nil
}

func (a *DCAPAttester) Verify(quote []byte) (*Report, error) {
	protoQuote, err := tdx_abi.QuoteToProto(quote)
	if err != nil {
		return nil, reject(AuthInvalidInput, "could not parse quote: %v", err)
	}

	v4Quote, ok := protoQuote.(*tdx_pb.QuoteV4)
	if !ok {
		return nil, reject(AuthInvalidInput, "unsupported quote type: %T", protoQuote)
	}

	options := verify.DefaultOptions()
	if a.VerifyOptions != nil {
		options = a.VerifyOptions
	}
	if err := verify.TdxQuote(protoQuote, options); err != nil {
		return nil, reject(AuthSignatureInvalid, "quote verification failed: %v", err)
	}

	body := v4Quote.GetTdQuoteBody()
	var svn uint32
	if tcb := body.GetTeeTcbSvn(); len(tcb) > 0 {
		svn = uint32(tcb[0])
	}
	attrs := body.GetTdAttributes()

	return &Report{
		Type:        TypeDCAP,
		Measurement: body.GetMrTd(),
		Signer:      body.GetMrSignerSeam(),
		SVN:         svn,
		Status:      StatusOK,
		Debug:       len(attrs) > 0 && attrs[0]&tdAttributesDebug != 0,
		ReportData:  body.GetReportData(),
		Quote:       quote,
	}, nil
}
