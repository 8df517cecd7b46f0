package extractor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/producttracker/internal/page"
)

func genericDoc(t *testing.T, head, body string) *page.Document {
	t.Helper()
	doc, err := page.FromHTML("https://www.shop.example.com/item/1", "<html><head>"+head+"</head><body>"+body+"</body></html>")
	require.NoError(t, err)
	return doc
}

func TestJSONLDGraphAndImageShapes(t *testing.T) {
	tests := []struct {
		name          string
		script        string
		expectedImage string
		expectedPrice string
	}{
		{
			"graph wrapper with image object array",
			`{"@graph":[{"@type":"WebPage"},{"@type":["Thing","Product"],"name":"Mug","image":[{"url":"https://img.example.com/mug.jpg"}],"offers":[{"lowPrice":"4.50"}]}]}`,
			"https://img.example.com/mug.jpg",
			"4.50",
		},
		{
			"top level array with image id",
			`[{"@type":"Organization"},{"@type":"Product","name":"Mug","image":{"@id":"https://img.example.com/id.jpg"}}]`,
			"https://img.example.com/id.jpg",
			"",
		},
		{
			"content url",
			`{"@type":"Product","name":"Mug","image":{"contentUrl":"https://img.example.com/c.jpg"},"offers":{"price":"12"}}`,
			"https://img.example.com/c.jpg",
			"12",
		},
		{
			"content url inside image array",
			`{"@type":"Product","name":"Mug","image":[{"@type":"ImageObject","contentUrl":"https://img.example.com/c.jpg"}]}`,
			"https://img.example.com/c.jpg",
			"",
		},
		{
			"string image",
			`{"@type":"Product","name":"Mug","image":"https://img.example.com/s.jpg"}`,
			"https://img.example.com/s.jpg",
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := genericDoc(t, `<script type="application/ld+json">`+tt.script+`</script>`, "")
			d := extractJSONLD(doc)
			require.NotNil(t, d)
			assert.Equal(t, "Mug", d.Title)
			assert.Equal(t, tt.expectedImage, d.Image)
			assert.Equal(t, tt.expectedPrice, d.Price)
			assert.Equal(t, "USD", d.Currency)
			assert.Equal(t, "example", d.Site)
		})
	}
}

func TestJSONLDMalformedBlockIsSkipped(t *testing.T) {
	doc := genericDoc(t,
		`<script type="application/ld+json">{not json</script>
		 <script type="application/ld+json">{"@type":"Product","name":"Second"}</script>`, "")

	d := extractJSONLD(doc)
	require.NotNil(t, d)
	assert.Equal(t, "Second", d.Title)
}

func TestJSONLDDescriptionTruncated(t *testing.T) {
	long := strings.Repeat("word ", 100)
	doc := genericDoc(t, `<script type="application/ld+json">{"@type":"Product","name":"Mug","description":"`+long+`"}</script>`, "")

	d := extractJSONLD(doc)
	require.NotNil(t, d)
	assert.LessOrEqual(t, len([]rune(d.Description)), 300)
}

func TestMicrodata(t *testing.T) {
	doc := genericDoc(t, "", `
		<div itemscope itemtype="https://schema.org/Product">
			<span itemprop="description">A sturdy chair</span>
			<img itemprop="image" src="/img/chair.jpg">
		</div>
		<div itemscope itemtype="http://schema.org/Product">
			<h1 itemprop="name">Chair</h1>
			<meta itemprop="price" content="89.00">
			<meta itemprop="priceCurrency" content="CAD">
		</div>`)

	d := extractMicrodata(doc)
	require.NotNil(t, d)
	assert.Equal(t, "Chair", d.Title)
	assert.Equal(t, "A sturdy chair", d.Description)
	assert.Equal(t, "https://www.shop.example.com/img/chair.jpg", d.Image)
	assert.Equal(t, "89.00", d.Price)
	assert.Equal(t, "CAD", d.Currency)
}

func TestMicrodataRequiresName(t *testing.T) {
	doc := genericDoc(t, "", `<div itemtype="https://schema.org/Product"><meta itemprop="price" content="1"></div>`)
	assert.Nil(t, extractMicrodata(doc))
}

func TestOpenGraph(t *testing.T) {
	doc := genericDoc(t, `
		<title>Fallback title</title>
		<meta property="og:price:amount" content="5.00">
		<meta property="og:price:currency" content="GBP">
		<meta property="og:image" content="//cdn.example.com/og.jpg">
		<meta name="description" content="Plain description">`, "")

	d := extractOpenGraph(doc)
	require.NotNil(t, d)
	assert.Equal(t, "Fallback title", d.Title)
	assert.Equal(t, "Plain description", d.Description)
	assert.Equal(t, "https://cdn.example.com/og.jpg", d.Image)
	assert.Equal(t, "5.00", d.Price)
	assert.Equal(t, "GBP", d.Currency)
}

func TestOpenGraphPrefersSecureImage(t *testing.T) {
	doc := genericDoc(t, `
		<meta property="og:type" content="product">
		<meta property="og:title" content="Lamp">
		<meta property="og:image" content="http://cdn.example.com/plain.jpg">
		<meta property="og:image:secure_url" content="https://cdn.example.com/secure.jpg">`, "")

	d := extractOpenGraph(doc)
	require.NotNil(t, d)
	assert.Equal(t, "https://cdn.example.com/secure.jpg", d.Image)
	assert.Equal(t, "", d.Price)
	assert.Equal(t, "USD", d.Currency)
}

func TestOpenGraphRequiresProductSignal(t *testing.T) {
	doc := genericDoc(t, `<meta property="og:type" content="article"><meta property="og:title" content="News">`, "")
	assert.Nil(t, extractOpenGraph(doc))
	assert.Nil(t, NewGenericStrategy().Extract(doc))
}

func TestGenericFallsThroughUntitledJSONLD(t *testing.T) {
	doc := genericDoc(t, `
		<script type="application/ld+json">{"@type":"Product","offers":{"price":"3"}}</script>
		<meta property="og:type" content="product">
		<meta property="og:title" content="From OG">`, "")

	d := NewGenericStrategy().Extract(doc)
	require.NotNil(t, d)
	assert.Equal(t, "From OG", d.Title)
}
