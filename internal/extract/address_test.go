package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractPostalCode(t *testing.T) {
	t.Parallel()

	require.Equal(t, "75015", ExtractPostalCode("12 Rue X, 75015 Paris"))
	require.Equal(t, "92100", ExtractPostalCode("", "92100 Boulogne"))
	require.Equal(t, "", ExtractPostalCode("no code here", "1234", "123456"))
}

func TestExtractCityFromAddress(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Paris", ExtractCityFromAddress("12 Rue X, 75015 Paris"))
	require.Equal(t, "Meudon", ExtractCityFromAddress("5 rue des Jardies, 92190 - Meudon"))
	require.Equal(t, "Clamart", ExtractCityFromAddress("Salle des fêtes, Clamart"))
	require.Equal(t, "", ExtractCityFromAddress(""))
}

func TestFormatCommune(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Boulogne-Billancourt", FormatCommune("BOULOGNE - BILLANCOURT"))
	require.Equal(t, "Issy-les-Moulineaux", FormatCommune("issy-les-moulineaux"))
	require.Equal(t, "Saint-Maur-des-Fossés", FormatCommune("SAINT-MAUR-DES-FOSSÉS"))
	require.Equal(t, "l'Haÿ-les-Roses", FormatCommune("L'HAŸ-LES-ROSES"))
}

func TestParisArrondissement(t *testing.T) {
	t.Parallel()

	require.Equal(t, 15, ParisArrondissement("75015"))
	require.Equal(t, 1, ParisArrondissement("75001"))
	require.Equal(t, 0, ParisArrondissement("75021"))
	require.Equal(t, 0, ParisArrondissement("92015"))
	require.Equal(t, "Paris 1er", ParisArrondissementLabel("75001"))
	require.Equal(t, "Paris 15e", ParisArrondissementLabel("75015"))
	require.Equal(t, "", ParisArrondissementLabel("93200"))
}

func TestFormatCommuneWithPostal(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Paris 15e", FormatCommuneWithPostal("paris 15e", "75015"))
	require.Equal(t, "Paris 8e", FormatCommuneWithPostal("", "75008"))
	require.Equal(t, "Paris 3e", FormatCommuneWithPostal("3eme", "75003"))
	// A real commune name wins over the arrondissement promotion.
	require.Equal(t, "Boulogne", FormatCommuneWithPostal("boulogne", "75016"))
	require.Equal(t, "Meudon", FormatCommuneWithPostal("meudon", "92190"))
}

func TestTidyAddress(t *testing.T) {
	t.Parallel()

	require.Equal(t, "12 Rue X, 75015 Paris", TidyAddress("12 Rue X<br/>75015 Paris"))
	require.Equal(t, "a, b", TidyAddress("a ,   b"))
}
