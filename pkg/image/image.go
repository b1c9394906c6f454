// Package image reads and writes program images: an instruction stream plus
// the entry offset and locals size a machine needs to run it.
//
// Two encodings are supported. YAML is meant for humans:
//
//	name: add
//	entry: 0
//	locals: 0
//	code: [11, 2, 11, 3, 1, 16, 18]
//
// CBOR (canonical mode) is the compact binary form.
package image

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"vmbytecode/pkg/vm"
)

// Format identifies an on-disk encoding
type Format int

const (
	FormatUnknown Format = iota
	FormatYAML
	FormatCBOR
)

func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatCBOR:
		return "cbor"
	default:
		return "unknown"
	}
}

var ErrInvalidImage = errors.New("invalid image")

// Image is a runnable program
type Image struct {
	Name   string  `yaml:"name,omitempty" cbor:"1,keyasint,omitempty"`
	Entry  int     `yaml:"entry" cbor:"2,keyasint"`
	Locals int     `yaml:"locals" cbor:"3,keyasint"`
	Code   []int64 `yaml:"code,flow" cbor:"4,keyasint"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Validate checks the image can be handed to a machine
func (img Image) Validate() error {
	if len(img.Code) == 0 {
		return fmt.Errorf("%w: empty code", ErrInvalidImage)
	}
	if img.Entry < 0 || img.Entry >= len(img.Code) {
		return fmt.Errorf("%w: entry %d outside code of %d slots", ErrInvalidImage, img.Entry, len(img.Code))
	}
	if img.Locals < 0 {
		return fmt.Errorf("%w: negative locals size %d", ErrInvalidImage, img.Locals)
	}
	if img.Locals > vm.MaxLocals {
		return fmt.Errorf("%w: locals size %d exceeds %d", ErrInvalidImage, img.Locals, vm.MaxLocals)
	}

	return nil
}

// NewMachine creates a machine ready to run the image
func (img Image) NewMachine(opts ...vm.Option) *vm.Machine {
	return vm.New(img.Code, img.Entry, img.Locals, opts...)
}

// Disassemble renders the image's code
func (img Image) Disassemble() string {
	name := img.Name
	if name == "" {
		name = "image"
	}

	return vm.Disassemble(img.Code, name)
}

// FormatFor picks an encoding from the file extension
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".cbor", ".vmb":
		return FormatCBOR
	default:
		return FormatUnknown
	}
}

// DecodeYAML reads a YAML image
func DecodeYAML(r io.Reader) (Image, error) {
	var img Image

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&img); err != nil {
		return Image{}, fmt.Errorf("image: decode yaml: %w", err)
	}

	return img, nil
}

// EncodeYAML writes img as YAML
func EncodeYAML(w io.Writer, img Image) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(img); err != nil {
		return fmt.Errorf("image: encode yaml: %w", err)
	}

	return enc.Close()
}

// EncodeCBOR serializes img to canonical CBOR bytes
func EncodeCBOR(img Image) ([]byte, error) {
	data, err := cborEncMode.Marshal(img)
	if err != nil {
		return nil, fmt.Errorf("image: encode cbor: %w", err)
	}

	return data, nil
}

// DecodeCBOR deserializes an image from CBOR bytes
func DecodeCBOR(data []byte) (Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return Image{}, fmt.Errorf("image: decode cbor: %w", err)
	}

	return img, nil
}

// Decode reads an image in the given format and validates it
func Decode(r io.Reader, format Format) (Image, error) {
	var (
		img Image
		err error
	)

	switch format {
	case FormatYAML:
		img, err = DecodeYAML(r)
	case FormatCBOR:
		var data []byte
		data, err = io.ReadAll(r)
		if err == nil {
			img, err = DecodeCBOR(data)
		}
	default:
		return Image{}, fmt.Errorf("image: unsupported format %s", format)
	}

	if err != nil {
		return Image{}, err
	}

	if err := img.Validate(); err != nil {
		return Image{}, err
	}

	return img, nil
}

// Encode writes an image in the given format
func Encode(w io.Writer, img Image, format Format) error {
	switch format {
	case FormatYAML:
		return EncodeYAML(w, img)
	case FormatCBOR:
		data, err := EncodeCBOR(img)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("image: unsupported format %s", format)
	}
}

// Load reads and validates the image at path; the extension selects the format
func Load(path string) (Image, error) {
	format := FormatFor(path)
	if format == FormatUnknown {
		return Image{}, fmt.Errorf("image: cannot infer format of %s (use .yaml, .yml, .cbor or .vmb)", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("cannot read %s: %w", path, err)
	}

	img, err := Decode(bytes.NewReader(data), format)
	if err != nil {
		return Image{}, fmt.Errorf("%s: %w", path, err)
	}

	if img.Name == "" {
		img.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return img, nil
}

// Save writes img to path; the extension selects the format
func Save(path string, img Image) error {
	format := FormatFor(path)
	if format == FormatUnknown {
		return fmt.Errorf("image: cannot infer format of %s (use .yaml, .yml, .cbor or .vmb)", path)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, img, format); err != nil {
		return err
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}

	return nil
}
