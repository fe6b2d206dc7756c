package tesseract

import (
	"fmt"
	"strconv"
	"strings"
)

// PageSegMode controls how the engine segments a page.
type PageSegMode int32

const (
	PSMOSDOnly PageSegMode = iota
	PSMAutoOSD
	PSMAutoOnly
	PSMAuto
	PSMSingleColumn
	PSMSingleBlockVertText
	PSMSingleBlock
	PSMSingleLine
	PSMSingleWord
	PSMCircleWord
	PSMSingleChar
	PSMSparseText
	PSMSparseTextOSD
	PSMRawLine
	psmCount
)

var psmNames = [...]string{"osd_only", "auto_osd", "auto_only", "auto", "single_column",
	"single_block_vert_text", "single_block", "single_line", "single_word", "circle_word",
	"single_char", "sparse_text", "sparse_text_osd", "raw_line"}

func (m PageSegMode) String() string {
	if m >= 0 && m < psmCount {
		return psmNames[m]
	}
	return "PageSegMode(" + strconv.Itoa(int(m)) + ")"
}

// ParsePageSegMode accepts the numeric value known from the tesseract CLI (--psm 6)
// or the name returned by String.
func ParsePageSegMode(s string) (PageSegMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n >= int(psmCount) {
			return 0, newError(ErrInvalidParameter, "ParsePageSegMode", fmt.Errorf("page segmentation mode out of range: %d", n))
		}
		return PageSegMode(n), nil
	}
	for i, name := range psmNames {
		if name == s {
			return PageSegMode(i), nil
		}
	}
	return 0, newError(ErrInvalidParameter, "ParsePageSegMode", fmt.Errorf("unknown page segmentation mode %q", s))
}

// OcrEngineMode selects the recognizer(s) used by Init.
type OcrEngineMode int32

const (
	OEMTesseractOnly OcrEngineMode = iota
	OEMLSTMOnly
	OEMTesseractLSTMCombined
	OEMDefault
)

var oemNames = [...]string{"tesseract_only", "lstm_only", "tesseract_lstm_combined", "default"}

func (m OcrEngineMode) String() string {
	if m >= 0 && int(m) < len(oemNames) {
		return oemNames[m]
	}
	return "OcrEngineMode(" + strconv.Itoa(int(m)) + ")"
}

// ParseOcrEngineMode accepts a number (--oem 1) or the name returned by String.
func ParseOcrEngineMode(s string) (OcrEngineMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n < len(oemNames) {
		return OcrEngineMode(n), nil
	}
	for i, name := range oemNames {
		if name == s {
			return OcrEngineMode(i), nil
		}
	}
	return 0, newError(ErrInvalidParameter, "ParseOcrEngineMode", fmt.Errorf("unknown engine mode %q", s))
}

// Level is the granularity an iterator moves at.
type Level int32

const (
	LevelBlock Level = iota
	LevelPara
	LevelTextline
	LevelWord
	LevelSymbol
)

func (l Level) String() string {
	switch l {
	case LevelBlock:
		return "block"
	case LevelPara:
		return "paragraph"
	case LevelTextline:
		return "textline"
	case LevelWord:
		return "word"
	case LevelSymbol:
		return "symbol"
	}
	return "Level(" + strconv.Itoa(int(l)) + ")"
}

func (l Level) valid() bool {
	return l >= LevelBlock && l <= LevelSymbol
}

// PolyBlockType classifies a layout block.
type PolyBlockType int32

const (
	PTUnknown PolyBlockType = iota
	PTFlowingText
	PTHeadingText
	PTPulloutText
	PTEquation
	PTInlineEquation
	PTTable
	PTVerticalText
	PTCaptionText
	PTFlowingImage
	PTHeadingImage
	PTPulloutImage
	PTHorzLine
	PTVertLine
	PTNoise
	ptCount
)

var blockTypeNames = [...]string{"unknown", "flowing_text", "heading_text", "pullout_text", "equation",
	"inline_equation", "table", "vertical_text", "caption_text", "flowing_image", "heading_image",
	"pullout_image", "horz_line", "vert_line", "noise"}

func (t PolyBlockType) String() string {
	if t >= 0 && t < ptCount {
		return blockTypeNames[t]
	}
	return "PolyBlockType(" + strconv.Itoa(int(t)) + ")"
}

// IsText reports whether the block contains text.
func (t PolyBlockType) IsText() bool {
	switch t {
	case PTFlowingText, PTHeadingText, PTPulloutText, PTVerticalText, PTCaptionText, PTTable:
		return true
	}
	return false
}

type Orientation int32

const (
	OrientationPageUp Orientation = iota
	OrientationPageRight
	OrientationPageDown
	OrientationPageLeft
)

func (o Orientation) String() string {
	switch o {
	case OrientationPageUp:
		return "page_up"
	case OrientationPageRight:
		return "page_right"
	case OrientationPageDown:
		return "page_down"
	case OrientationPageLeft:
		return "page_left"
	}
	return "Orientation(" + strconv.Itoa(int(o)) + ")"
}

type WritingDirection int32

const (
	WritingDirectionLeftToRight WritingDirection = iota
	WritingDirectionRightToLeft
	WritingDirectionTopToBottom
)

func (d WritingDirection) String() string {
	switch d {
	case WritingDirectionLeftToRight:
		return "left_to_right"
	case WritingDirectionRightToLeft:
		return "right_to_left"
	case WritingDirectionTopToBottom:
		return "top_to_bottom"
	}
	return "WritingDirection(" + strconv.Itoa(int(d)) + ")"
}

type TextlineOrder int32

const (
	TextlineOrderLeftToRight TextlineOrder = iota
	TextlineOrderRightToLeft
	TextlineOrderTopToBottom
)

func (o TextlineOrder) String() string {
	switch o {
	case TextlineOrderLeftToRight:
		return "left_to_right"
	case TextlineOrderRightToLeft:
		return "right_to_left"
	case TextlineOrderTopToBottom:
		return "top_to_bottom"
	}
	return "TextlineOrder(" + strconv.Itoa(int(o)) + ")"
}

type ParagraphJustification int32

const (
	JustificationUnknown ParagraphJustification = iota
	JustificationLeft
	JustificationCenter
	JustificationRight
)

func (j ParagraphJustification) String() string {
	switch j {
	case JustificationUnknown:
		return "unknown"
	case JustificationLeft:
		return "left"
	case JustificationCenter:
		return "center"
	case JustificationRight:
		return "right"
	}
	return "ParagraphJustification(" + strconv.Itoa(int(j)) + ")"
}
