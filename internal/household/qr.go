package household

import (
	"fmt"
	"net/url"

	qrcode "github.com/skip2/go-qrcode"
)

// qrSize is the edge length in pixels of generated invite QR codes.
const qrSize = 256

// JoinURL builds the link an invite QR code points at.
func JoinURL(baseURL, code string) string {
	return fmt.Sprintf("%s/join?code=%s", baseURL, url.QueryEscape(code))
}

// InviteQR renders an invite's join link as a PNG QR code, sized for
// scanning off another phone's screen.
func InviteQR(baseURL, code string) ([]byte, error) {
	png, err := qrcode.Encode(JoinURL(baseURL, code), qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
