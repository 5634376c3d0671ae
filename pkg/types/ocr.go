// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// Dimensions is an image size in pixels.
type Dimensions struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// OCRData holds recognized tokens for one image as parallel lists. Index i
// of every list describes the same token.
type OCRData struct {
	TextList   []string   `json:"text_list" yaml:"text_list"`
	LeftList   []int      `json:"left_list" yaml:"left_list"`
	TopList    []int      `json:"top_list" yaml:"top_list"`
	WidthList  []int      `json:"width_list" yaml:"width_list"`
	HeightList []int      `json:"height_list" yaml:"height_list"`
	Dimensions Dimensions `json:"dimensions" yaml:"dimensions"`
}

// Len returns the number of tokens.
func (d OCRData) Len() int {
	return len(d.TextList)
}

// Append adds one token and its geometry, keeping the lists aligned.
func (d *OCRData) Append(text string, left, top, width, height int) {
	d.TextList = append(d.TextList, text)
	d.LeftList = append(d.LeftList, left)
	d.TopList = append(d.TopList, top)
	d.WidthList = append(d.WidthList, width)
	d.HeightList = append(d.HeightList, height)
}

// Check verifies that the geometry lists are index-aligned with TextList.
func (d OCRData) Check() error {
	n := len(d.TextList)
	if len(d.LeftList) != n || len(d.TopList) != n || len(d.WidthList) != n || len(d.HeightList) != n {
		return fmt.Errorf("ocr lists are not aligned: text=%d left=%d top=%d width=%d height=%d",
			n, len(d.LeftList), len(d.TopList), len(d.WidthList), len(d.HeightList))
	}
	return nil
}
