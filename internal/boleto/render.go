package boleto

import (
	"bytes"
	"fmt"
	"image/png"
	"io"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/twooffive"
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/image"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/border"
	"github.com/johnfercher/maroto/v2/pkg/consts/extension"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontfamily"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/linestyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"go.uber.org/zap"
)

// The template this package replicates is laid out in points on an A4
// sheet. Grid columns mirror the template's horizontal widths (526pt of
// printable slip), row heights convert point heights to millimeters, so
// the vertical structure of the two copies stays aligned with the
// pre-printed perforation: 276pt of slip body, an 8pt gap to the cut
// line, 5pt to the start of the stub.
const (
	gridWidth = 526

	ptToMM = 25.4 / 72.0

	headerPt       = 33
	fieldRowPt     = 24
	refRowPt       = 25
	instructionsPt = 96
	payerPt        = 38
	authPt         = 12
	cutGapPt       = 8
	stubLeadPt     = 5
	pixAreaPt      = 107
	barcodePt      = 33
)

func mm(pt float64) float64 { return pt * ptToMM }

var boxed = &props.Cell{
	BorderType:      border.Full,
	BorderThickness: 0.2,
	BorderColor:     &props.Color{Red: 153, Green: 153, Blue: 153},
}

// Renderer draws slip PDFs. Barcode and QR failures degrade to a slip
// without the image, the digitable line stays printed and manually
// payable.
type Renderer struct {
	log *zap.Logger
}

func NewRenderer(log *zap.Logger) *Renderer {
	return &Renderer{log: log.Named("boleto")}
}

// Render writes the two-copy slip PDF for doc into w.
func (r *Renderer) Render(doc *Document, w io.Writer) error {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(9).WithRightMargin(15).
		WithTopMargin(6).WithBottomMargin(6).
		WithMaxGridSize(gridWidth).
		WithDefaultFont(&props.Font{Family: fontfamily.Helvetica, Size: 8}).
		Build()

	m := maroto.New(cfg)

	r.addCopy(m, doc, true)

	m.AddRows(line.NewRow(mm(cutGapPt), props.Line{
		Style:         linestyle.Dashed,
		Thickness:     0.3,
		SizePercent:   100,
		OffsetPercent: 100,
	}))
	m.AddRows(row.New(mm(stubLeadPt)).Add(col.New(gridWidth)))

	r.addCopy(m, doc, false)

	generated, err := m.Generate()
	if err != nil {
		return fmt.Errorf("boleto: generate pdf: %w", err)
	}
	if _, err := w.Write(generated.GetBytes()); err != nil {
		return fmt.Errorf("boleto: write pdf: %w", err)
	}
	return nil
}

// addCopy draws one copy of the slip. The receipt copy carries the payer
// block right under the field grid; the stub repeats it lower, followed
// by the PIX area and the barcode.
func (r *Renderer) addCopy(m core.Maroto, doc *Document, receipt bool) {
	m.AddRows(headerRow(doc, receipt))
	m.AddRows(fieldGridRows(doc)...)
	m.AddRows(instructionRows(doc)...)

	m.AddRows(payerRow(doc))

	if receipt {
		m.AddRows(authRow())
		return
	}

	m.AddRows(pixRow(doc))
	m.AddRows(authRow())
	m.AddRows(r.barcodeRow(doc))
}

func headerRow(doc *Document, receipt bool) core.Row {
	right := "FICHA DE COMPENSAÇÃO"
	if receipt {
		right = "RECIBO DO SACADO"
	}

	cols := []core.Col{
		col.New(100).Add(text.New(doc.BankName, props.Text{
			Size:  10,
			Style: fontstyle.Bold,
			Top:   mm(18),
		})),
		col.New(45).Add(text.New("| "+doc.BankCode+" |", props.Text{
			Size:  10,
			Style: fontstyle.Bold,
			Top:   mm(18),
			Align: align.Center,
		})),
	}

	if receipt {
		cols = append(cols,
			col.New(231),
			col.New(150).Add(text.New(right, props.Text{
				Size:  8,
				Style: fontstyle.Bold,
				Top:   mm(20),
				Align: align.Right,
			})),
		)
	} else {
		cols = append(cols, col.New(381).Add(text.New(doc.DigitableLine, props.Text{
			Size:  9,
			Top:   mm(19),
			Align: align.Right,
		})))
	}

	return row.New(mm(headerPt)).Add(cols...)
}

// fieldCol is one bordered cell of the slip grid: a small label on top,
// the value under it.
func fieldCol(size int, label, value string, valueAlign align.Type) core.Col {
	c := col.New(size).WithStyle(boxed).Add(
		text.New(label, props.Text{
			Size: 7,
			Top:  mm(2),
			Left: 1,
		}),
	)
	if value != "" {
		c.Add(text.New(value, props.Text{
			Size:  8,
			Top:   mm(13),
			Left:  1,
			Right: 1,
			Align: valueAlign,
		}))
	}
	return c
}

func fieldGridRows(doc *Document) []core.Row {
	rows := []core.Row{
		row.New(mm(fieldRowPt)).Add(
			fieldCol(431, "Local do Pagamento:", doc.PaymentLocation, align.Left),
			fieldCol(95, "Vencimento:", doc.DueDate, align.Right),
		),
		row.New(mm(fieldRowPt)).Add(
			fieldCol(431, "Cedente/Sacado:", doc.PayeeName, align.Left),
			fieldCol(95, "Agência/Código Cedente", doc.AgencyAccount, align.Center),
		),
		row.New(mm(refRowPt)).Add(
			fieldCol(108, "Data do Documento", doc.DocumentDate, align.Left),
			fieldCol(108, "Número do Documento", doc.DocumentNumber, align.Left),
			fieldCol(90, "Esp.Doc.", doc.DocumentKind, align.Center),
			fieldCol(32, "Aceite", doc.Acceptance, align.Center),
			fieldCol(93, "Data Processamento", doc.ProcessingDate, align.Left),
			fieldCol(95, "Nosso Número", doc.OurNumber, align.Left),
		),
		row.New(mm(fieldRowPt)).Add(
			fieldCol(108, "Uso do Banco", "", align.Left),
			fieldCol(54, "Carteira", doc.Wallet, align.Left),
			fieldCol(55, "Espécie", "R$", align.Center),
			fieldCol(122, "Quantidade", "", align.Left),
			fieldCol(92, "Valor", "", align.Left),
			fieldCol(95, "(=) Valor do Documento", doc.Amount, align.Right),
		),
	}
	return rows
}

// instructionRows pairs the instruction lines with the stacked charge
// cells on the right side of the template.
func instructionRows(doc *Document) []core.Row {
	sideLabels := []string{
		"(-) Desconto/Abatimento",
		"(+) Mora/Multa",
		"(+) Outros Acréscimos",
		"(=) Valor Cobrado",
	}
	sideValues := []string{"", "", "", doc.Amount}

	// Five instruction lines across four 24pt slices of the 96pt block.
	chunks := [][]string{nil, nil, nil, nil}
	for i, instruction := range doc.Instructions {
		slot := i
		if slot > 3 {
			slot = 3
		}
		chunks[slot] = append(chunks[slot], instruction)
	}

	rows := make([]core.Row, 0, 4)
	for i := 0; i < 4; i++ {
		left := col.New(431).WithStyle(boxed)
		for j, instruction := range chunks[i] {
			left.Add(text.New(instruction, props.Text{
				Size: 8,
				Top:  mm(3 + float64(j)*10),
				Left: 1.5,
			}))
		}
		rows = append(rows, row.New(mm(fieldRowPt)).Add(
			left,
			fieldCol(95, sideLabels[i], sideValues[i], align.Right),
		))
	}
	return rows
}

func payerRow(doc *Document) core.Row {
	payer := col.New(gridWidth).WithStyle(boxed)
	for i, lineText := range doc.PayerLines {
		payer.Add(text.New(lineText, props.Text{
			Size: 6,
			Top:  mm(2 + float64(i)*8),
			Left: 1.5,
		}))
	}
	return row.New(mm(payerPt)).Add(payer)
}

func pixRow(doc *Document) core.Row {
	if doc.PixPayload == "" {
		return row.New(mm(pixAreaPt)).Add(col.New(gridWidth).WithStyle(boxed))
	}

	left := col.New(431).WithStyle(boxed).Add(
		text.New(doc.PixPayload, props.Text{
			Family: fontfamily.Courier,
			Size:   5.3,
			Top:    mm(6),
			Left:   1.5,
			Right:  1.5,
		}),
		text.New("PIX Copia e Cola", props.Text{
			Size: 8,
			Top:  mm(70),
			Left: 1.5,
		}),
	)
	qr := col.New(95).WithStyle(boxed).Add(
		code.NewQr(doc.PixPayload, props.Rect{
			Percent: 70,
			Center:  true,
		}),
	)
	return row.New(mm(pixAreaPt)).Add(left, qr)
}

func authRow() core.Row {
	return row.New(mm(authPt)).Add(
		col.New(gridWidth).WithStyle(boxed).Add(
			text.New("Autenticação", props.Text{
				Size:  8,
				Top:   mm(3),
				Align: align.Right,
				Right: 1.5,
			}),
		),
	)
}

// barcodeRow encodes the 44-digit payload as interleaved 2 of 5. An
// encoding failure leaves the row empty and is logged.
func (r *Renderer) barcodeRow(doc *Document) core.Row {
	pngBytes, err := encodeITF(doc.Barcode)
	if err != nil {
		r.log.Warn("barcode encoding failed, slip rendered without it",
			zap.String("our_number", doc.OurNumber),
			zap.Error(err),
		)
		return row.New(mm(barcodePt)).Add(col.New(gridWidth))
	}

	return row.New(mm(barcodePt)).Add(
		image.NewFromBytesCol(400, pngBytes, extension.Png, props.Rect{
			Percent: 100,
		}),
		col.New(126),
	)
}

func encodeITF(payload string) ([]byte, error) {
	encoded, err := twooffive.Encode(payload, true)
	if err != nil {
		return nil, err
	}
	scaled, err := barcode.Scale(encoded, 800, 60)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
