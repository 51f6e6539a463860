package modbus

import (
	"strings"
	"testing"
)

const samplePointsCSV = `tag,alias,slaveId,function,address,dataType,byteOrder,bitPosition,weight
temp,Temperature,1,3,100,float32,ABCD,0,0.1
humi,Humidity,1,3,102,uint16,AB,0,1
flow,Flow,1,3,103,uint32,CDAB,0,
alarm,Alarm bit,1,1,0,bool,,3,
status,Status,2,4,50,int16,BA,0,1
`

func TestParsePointsCSV(t *testing.T) {
	points, err := ParsePointsCSV(strings.NewReader(samplePointsCSV))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(points) != 5 {
		t.Fatalf("expected 5 points, got %d", len(points))
	}

	p := points[0]
	if p.Tag != "temp" || p.SlaveID != 1 || p.FunctionCode != 3 || p.Address != 100 {
		t.Errorf("unexpected first point: %+v", p)
	}
	if p.DataType != "float32" || p.ByteOrder != BigEndian || p.Weight != 0.1 {
		t.Errorf("unexpected decode fields: %+v", p)
	}
	if points[3].BitPosition != 3 {
		t.Errorf("expected bit position 3, got %d", points[3].BitPosition)
	}
}

func TestParsePointsCSVRejectsBadRows(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"bad header", "tag,alias\nx,y\n"},
		{"bad slave", "tag,alias,slaveId,function,address,dataType,byteOrder,bitPosition,weight\na,,300,3,0,uint16,AB,0,\n"},
		{"bad function", "tag,alias,slaveId,function,address,dataType,byteOrder,bitPosition,weight\na,,1,9,0,uint16,AB,0,\n"},
		{"bad byte order", "tag,alias,slaveId,function,address,dataType,byteOrder,bitPosition,weight\na,,1,3,0,uint16,XY,0,\n"},
		{"bad bit position", "tag,alias,slaveId,function,address,dataType,byteOrder,bitPosition,weight\na,,1,1,0,bool,,16,\n"},
		{"empty tag", "tag,alias,slaveId,function,address,dataType,byteOrder,bitPosition,weight\n,,1,3,0,uint16,AB,0,\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePointsCSV(strings.NewReader(tt.csv)); err == nil {
				t.Error("bad CSV accepted")
			}
		})
	}
}

func TestPointSpan(t *testing.T) {
	if got := (RegisterPoint{DataType: "float64"}).Span(); got != 4 {
		t.Errorf("expected 4, got %d", got)
	}
	if got := (RegisterPoint{DataType: "bool"}).Span(); got != 1 {
		t.Errorf("bool occupies one register on the wire, got %d", got)
	}
}

func TestGroupPointsByContinuity(t *testing.T) {
	points := []RegisterPoint{
		{Tag: "a", SlaveID: 1, FunctionCode: 3, Address: 100, DataType: "uint16"},
		{Tag: "b", SlaveID: 1, FunctionCode: 3, Address: 101, DataType: "float32"},
		{Tag: "c", SlaveID: 1, FunctionCode: 3, Address: 103, DataType: "uint16"},
		{Tag: "d", SlaveID: 1, FunctionCode: 3, Address: 200, DataType: "uint16"}, // gap
		{Tag: "e", SlaveID: 2, FunctionCode: 3, Address: 100, DataType: "uint16"}, // other slave
		{Tag: "f", SlaveID: 1, FunctionCode: 4, Address: 100, DataType: "uint16"}, // other function
	}
	groups := GroupPointsByContinuity(points)
	if len(groups) != 4 {
		t.Fatalf("expected 4 groups, got %d: %v", len(groups), groups)
	}
	if len(groups[0]) != 3 || groups[0][0].Tag != "a" || groups[0][2].Tag != "c" {
		t.Errorf("unexpected first group: %v", groups[0])
	}

	start, quantity := groupQuantity(groups[0])
	if start != 100 || quantity != 4 {
		t.Errorf("expected span 100+4, got %d+%d", start, quantity)
	}
}

func TestGroupPointsSharedRegisterBits(t *testing.T) {
	// two alarm bits in the same register read as one group
	points := []RegisterPoint{
		{Tag: "bit0", SlaveID: 1, FunctionCode: 3, Address: 10, DataType: "bool", BitPosition: 0},
		{Tag: "bit5", SlaveID: 1, FunctionCode: 3, Address: 10, DataType: "bool", BitPosition: 5},
	}
	groups := GroupPointsByContinuity(points)
	if len(groups) != 1 || len(groups[0]) != 2 {
		t.Fatalf("expected one group of 2, got %v", groups)
	}
	start, quantity := groupQuantity(groups[0])
	if start != 10 || quantity != 1 {
		t.Errorf("expected span 10+1, got %d+%d", start, quantity)
	}
}

func TestGroupPointsSplitsAtCeiling(t *testing.T) {
	// 126 adjacent uint16 points cannot fit one read request
	points := make([]RegisterPoint, 126)
	for i := range points {
		points[i] = RegisterPoint{
			Tag: "p", SlaveID: 1, FunctionCode: 3,
			Address: uint16(i), DataType: "uint16",
		}
	}
	groups := GroupPointsByContinuity(points)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if len(groups[0]) != 125 || len(groups[1]) != 1 {
		t.Errorf("expected split 125/1, got %d/%d", len(groups[0]), len(groups[1]))
	}
}

func TestPointValidate(t *testing.T) {
	good := RegisterPoint{Tag: "x", SlaveID: 1, FunctionCode: 3, Address: 0, DataType: "uint16", ByteOrder: BigEndian16}
	if err := good.Validate(); err != nil {
		t.Errorf("valid point rejected: %v", err)
	}
	bad := good
	bad.FunctionCode = FuncCodeWriteSingleCoil
	if err := bad.Validate(); err == nil {
		t.Error("write function code accepted for a poll point")
	}
}
