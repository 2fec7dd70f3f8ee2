package zapimoveis

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
	"github.com/matheusluizig/imovelguide-integracao-sub000/ixgest"
)

func TestExtract(t *testing.T) {
	f, err := os.Open("testdata/carga.xml")
	require.NoError(t, err)
	defer f.Close()

	doc, err := ixgest.ParseDocument(f)
	require.NoError(t, err)

	records, err := New().Extract(doc)
	require.NoError(t, err)
	require.Len(t, records, 2)

	casa := records[0]
	assert.Equal(t, "Z-55", casa.Code)
	assert.Empty(t, casa.OfferText)
	assert.Nil(t, casa.ForSale)
	assert.Equal(t, "1.250.000,00", casa.SalePrice)
	assert.Empty(t, casa.RentPrice)
	assert.Equal(t, "2.100,00", casa.IPTU)
	assert.Equal(t, "Casa Casa Padrão", casa.PropertyType)
	assert.Equal(t, "450", casa.TotalArea)
	assert.Equal(t, "4", casa.Bedrooms)
	assert.Equal(t, "Cambuí", casa.Neighborhood)
	assert.Equal(t, "13025000", casa.PostalCode)
	assert.Equal(t, []string{"Piscina", "Churrasqueira", "Salão de festas"}, casa.Features)
	assert.Equal(t, []string{
		"https://fotos.example/z55/piscina.jpg",
		"https://fotos.example/z55/fachada.jpg",
	}, casa.ImageURLs, "main photo first, photos without URL dropped")
	assert.Equal(t, "https://youtube.example/watch?v=z55", casa.VideoURL)
	assert.True(t, casa.Highlighted)

	apto := records[1]
	assert.Equal(t, "Locação", apto.OfferText)
	assert.Equal(t, "Seguro fiança", apto.Guarantee)
	assert.Equal(t, "Apartamento", apto.PropertyType)
	assert.Empty(t, apto.Features)
}

func TestExtractRequiresImoveis(t *testing.T) {
	doc, err := ixgest.ParseDocument(strings.NewReader(`<Carga></Carga>`))
	require.NoError(t, err)

	_, err = New().Extract(doc)
	assert.True(t, errors.Is(err, errors.ErrInvalidFeed))
}
