package testasset

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
)

// LogTypes are captured process outputs collected next to reports.
var LogTypes = []string{".txt", ".log", ".out"}

func IsLogAsset(fileName string) bool {
	ext := filepath.Ext(fileName)
	return slices.Contains(LogTypes, strings.ToLower(ext))
}

// XMLRootElement returns the local name of the first element in the xml file at pth,
// or an empty string if the file is not readable xml.
func XMLRootElement(pth string) string {
	if strings.ToLower(filepath.Ext(pth)) != ".xml" {
		return ""
	}

	f, err := os.Open(pth)
	if err != nil {
		return ""
	}
	defer func() {
		_ = f.Close()
	}()

	return RootElement(f)
}

// RootElement ...
func RootElement(r io.Reader) string {
	decoder := NewXMLDecoder(r)
	for {
		token, err := decoder.Token()
		if err != nil {
			return ""
		}
		if start, ok := token.(xml.StartElement); ok {
			return start.Name.Local
		}
	}
}

// NewXMLDecoder returns a decoder that honours the encoding declared in the xml header,
// the test scripts write ISO-8859-1 reports.
func NewXMLDecoder(r io.Reader) *xml.Decoder {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charsetReader
	return decoder
}

// UnmarshalXML is xml.Unmarshal with the decoder of NewXMLDecoder.
func UnmarshalXML(data []byte, v any) error {
	return NewXMLDecoder(bytes.NewReader(data)).Decode(v)
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset: %s", label)
	}
	return enc.NewDecoder().Reader(input), nil
}
