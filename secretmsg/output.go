package secretmsg

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
)

// Output is the envelope a contract returns: exactly one of Ok or Err is set.
type Output struct {
	Ok  json.RawMessage `json:"ok,omitempty"`
	Err json.RawMessage `json:"err,omitempty"`
}

// genericErr is how an encrypted error reaches the caller.
type genericErr struct {
	GenericErr struct {
		Msg string `json:"msg"`
	} `json:"generic_err"`
}

// EncryptOutput encrypts the payload of a contract result for the caller of
// the request identified by nonce and callerKey, under the I/O key
// generation gen that opened it. The result is the same envelope with the
// payload replaced by base64 ciphertext.
func (c *Codec) EncryptOutput(raw []byte, gen interfaces.Generation, nonce [NonceSize]byte, callerKey interfaces.PublicKey) ([]byte, error) {
	var out Output
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: output is not a contract result: %v", interfaces.ErrInvalidInput, err)
	}
	out.Ok = absentIfNull(out.Ok)
	out.Err = absentIfNull(out.Err)
	if (out.Ok == nil) == (out.Err == nil) {
		return nil, fmt.Errorf("%w: output must carry exactly one of ok or err", interfaces.ErrInvalidInput)
	}

	payload := out.Ok
	if payload == nil {
		payload = out.Err
	}
	msg, err := c.Encrypt(payload, gen, nonce, callerKey)
	if err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(msg.Ciphertext)

	if out.Ok != nil {
		ok, err := json.Marshal(encoded)
		if err != nil {
			return nil, err
		}
		return json.Marshal(Output{Ok: ok})
	}

	var ge genericErr
	ge.GenericErr.Msg = encoded
	errPayload, err := json.Marshal(ge)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Output{Err: errPayload})
}

func absentIfNull(v json.RawMessage) json.RawMessage {
	if v == nil || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return nil
	}
	return v
}

// DecryptOutput is the caller side of EncryptOutput. It returns the original
// ok or err payload and whether it was an error.
func (c *Client) DecryptOutput(raw []byte, nonce [NonceSize]byte) ([]byte, bool, error) {
	var out Output
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false, fmt.Errorf("%w: %v", interfaces.ErrInvalidInput, err)
	}

	var encoded string
	isErr := out.Err != nil
	if isErr {
		var ge genericErr
		if err := json.Unmarshal(out.Err, &ge); err != nil {
			return nil, true, fmt.Errorf("%w: %v", interfaces.ErrInvalidInput, err)
		}
		encoded = ge.GenericErr.Msg
	} else if err := json.Unmarshal(out.Ok, &encoded); err != nil {
		return nil, false, fmt.Errorf("%w: %v", interfaces.ErrInvalidInput, err)
	}

	ct, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, isErr, interfaces.ErrDecryption
	}
	plaintext, err := c.DecryptResponse(nonce, ct)
	return plaintext, isErr, err
}
