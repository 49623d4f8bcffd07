package pipeline

import (
	"regexp"
	"strconv"

	harvesterr "tabnet-harvester/internal/errors"
	"tabnet-harvester/internal/model"
	"tabnet-harvester/internal/tabnet"
)

var (
	// reRows captures the array literal handed to the chart's data table
	reRows = regexp.MustCompile(`(?s)data\.addRows\(\s*\[(.*?)\]\s*\);`)
	// reRow captures "['3 Região Sudeste', {v: 1234.0, ...}" → code, value
	reRow = regexp.MustCompile(`\[\s*['"]\s*(\d+)\s+Regi(?:ão|ao|\x{FFFD}o)[^\]]+['"]\s*,\s*\{v:\s*([\d.]+)`)
)

// ParseResponse extracts region values from a response body.
//
// It returns (nil, nil) when the body has no data block, which is how the
// service answers queries that match zero rows. A block whose rows cannot be
// interpreted (unknown region code, bad number, repeated region) is a PARSE
// error; the parser never returns a partial map.
func ParseResponse(body string) (model.RegionValues, error) {
	block := reRows.FindStringSubmatch(body)
	if block == nil {
		return nil, nil
	}

	rows := reRow.FindAllStringSubmatch(block[1], -1)
	values := make(model.RegionValues, len(rows))
	for _, row := range rows {
		code, err := strconv.Atoi(row[1])
		if err != nil {
			return nil, harvesterr.Wrap(harvesterr.ErrCategoryParse, harvesterr.CodeUnknownRegion, "region code "+row[1], err)
		}
		region, ok := tabnet.Regions[code]
		if !ok {
			return nil, harvesterr.Newf(harvesterr.ErrCategoryParse, harvesterr.CodeUnknownRegion, "unexpected region code %d", code)
		}
		if _, dup := values[region]; dup {
			return nil, harvesterr.Newf(harvesterr.ErrCategoryParse, harvesterr.CodeDuplicateRow, "region %s appears twice", region)
		}

		// strconv is locale-independent: '.' is always the decimal point
		v, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, harvesterr.Wrap(harvesterr.ErrCategoryParse, harvesterr.CodeBadNumber, "value for "+region, err)
		}
		values[region] = v
	}
	return values, nil
}
