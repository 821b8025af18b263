package service

import (
	"strings"
	"testing"

	"cardstock/internal/model"
	"cardstock/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportService_BanksPerRowResults(t *testing.T) {
	e := newEnv(t)
	csv := "Nom;Code Banque;Adresse\n" +
		"Banque Atlas;BA01;Casablanca\n" +
		"Banque Sud;;Agadir\n" +
		"Banque Copie;BA01;Rabat\n" +
		"Banque Nord;BN02;Tanger\n"

	res, err := e.imports.Import(e.ctx, Actor{}, EntityBanks, "banks.csv", strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, RowSkipped, res.Rows[1].Status)
	assert.Equal(t, 3, res.Rows[1].Line)
	assert.Equal(t, RowFailed, res.Rows[2].Status)

	assert.Equal(t, int64(2), e.count(t, &model.Bank{}))
	assert.Equal(t, int64(1), e.count(t, &model.AuditLog{}, "type = ?", model.AuditTypeDataImported))
}

func TestImportService_LocationsCardTypesStocks(t *testing.T) {
	e := newEnv(t)
	_, err := e.banks.Create(e.ctx, &CreateBankInput{Name: "Banque Atlas", BankCode: "BA01"})
	require.NoError(t, err)

	res, err := e.imports.Import(e.ctx, Actor{}, EntityLocations, "locations.csv", strings.NewReader(
		"name,bank,capacité\nCoffre,BA01,1000\nAgence,banque atlas,\nPerdu,XX99,\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Failed)

	res, err = e.imports.Import(e.ctx, Actor{}, EntityCardTypes, "card-types.csv", strings.NewReader(
		"nom,banque,type,seuil\nVisa Classic,BA01,debit,20\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	res, err = e.imports.Import(e.ctx, Actor{}, EntityStocks, "stocks.csv", strings.NewReader(
		"lieu,type carte,quantité\nCoffre,visa classic,500\nCoffre,Visa Classic,1\nAgence,Visa Classic,abc\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 2, res.Failed)

	stocks, err := e.stocks.List(e.ctx, repository.StockFilter{})
	require.NoError(t, err)
	require.Len(t, stocks, 1)
	assert.Equal(t, int64(500), stocks[0].Quantity)
	assert.Equal(t, int64(20), stocks[0].AlertThreshold)
}

func TestImportService_Rejects(t *testing.T) {
	e := newEnv(t)
	var ve *ValidationError

	_, err := e.imports.Import(e.ctx, Actor{}, "users", "users.csv", strings.NewReader("a\n"))
	require.ErrorAs(t, err, &ve)

	_, err = e.imports.Import(e.ctx, Actor{}, EntityBanks, "banks.pdf", strings.NewReader("a\n"))
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "file", ve.Fields[0].Field)
}

func TestImportService_Templates(t *testing.T) {
	e := newEnv(t)

	for _, entity := range []string{EntityBanks, EntityLocations, EntityCardTypes, EntityStocks} {
		body, err := e.imports.Template(entity)
		require.NoError(t, err)

		// 按模板导入示例行不应出现 skipped
		res, err := e.imports.Import(e.ctx, Actor{}, entity, entity+".csv", strings.NewReader(body))
		require.NoError(t, err, entity)
		assert.Equal(t, 1, res.Created, entity)
	}

	_, err := e.imports.Template("users")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestExportService_Tables(t *testing.T) {
	e := newEnv(t)
	vault, _, cardType := e.seed(t, 0, 0)
	_, err := e.movements.Create(e.ctx, Actor{}, &CreateMovementInput{Type: "in", Quantity: 3, LocationID: vault.ID, CardTypeID: cardType.ID})
	require.NoError(t, err)

	for entity, rows := range map[string]int{
		EntityBanks:     1,
		EntityLocations: 2,
		EntityCardTypes: 1,
		EntityStocks:    1,
		EntityMovements: 1,
	} {
		table, err := e.exports.Table(e.ctx, entity)
		require.NoError(t, err, entity)
		assert.Len(t, table.Rows, rows, entity)
		for _, row := range table.Rows {
			assert.Len(t, row, len(table.Headers), entity)
		}
	}

	_, err = e.exports.Table(e.ctx, "users")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
}
