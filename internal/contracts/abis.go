package contracts

// Factory ABIs. Each version keeps only the entries the pipeline touches.

const tokenFactoryV1JSON = `[
  {"type":"function","name":"createToken","stateMutability":"payable",
   "inputs":[{"name":"name","type":"string"},{"name":"symbol","type":"string"},{"name":"totalSupply","type":"uint256"}],
   "outputs":[{"name":"token","type":"address"}]},
  {"type":"function","name":"deploymentFee","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"event","name":"TokenCreated","anonymous":false,"inputs":[
    {"name":"token","type":"address","indexed":true},
    {"name":"creator","type":"address","indexed":true},
    {"name":"name","type":"string","indexed":false},
    {"name":"symbol","type":"string","indexed":false},
    {"name":"totalSupply","type":"uint256","indexed":false}]},
  {"type":"event","name":"FeeUpdated","anonymous":false,"inputs":[
    {"name":"oldFee","type":"uint256","indexed":false},
    {"name":"newFee","type":"uint256","indexed":false}]},
  {"type":"error","name":"InsufficientFee","inputs":[]},
  {"type":"error","name":"NotOwner","inputs":[]}
]`

const tokenFactoryV2JSON = `[
  {"type":"function","name":"createToken","stateMutability":"payable",
   "inputs":[{"name":"name","type":"string"},{"name":"symbol","type":"string"},{"name":"decimals","type":"uint8"},{"name":"totalSupply","type":"uint256"}],
   "outputs":[{"name":"token","type":"address"}]},
  {"type":"function","name":"deploymentFee","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"event","name":"TokenCreated","anonymous":false,"inputs":[
    {"name":"token","type":"address","indexed":true},
    {"name":"creator","type":"address","indexed":true},
    {"name":"name","type":"string","indexed":false},
    {"name":"symbol","type":"string","indexed":false},
    {"name":"totalSupply","type":"uint256","indexed":false}]},
  {"type":"error","name":"InsufficientFee","inputs":[]}
]`

const tokenFactoryV3JSON = `[
  {"type":"function","name":"createToken","stateMutability":"payable",
   "inputs":[{"name":"name","type":"string"},{"name":"symbol","type":"string"},{"name":"decimals","type":"uint8"},{"name":"totalSupply","type":"uint256"},{"name":"presale","type":"bool"}],
   "outputs":[{"name":"token","type":"address"}]},
  {"type":"function","name":"creationFee","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"TokenDeployed","anonymous":false,"inputs":[
    {"name":"creator","type":"address","indexed":true},
    {"name":"token","type":"address","indexed":false},
    {"name":"name","type":"string","indexed":false},
    {"name":"symbol","type":"string","indexed":false},
    {"name":"totalSupply","type":"uint256","indexed":false}]},
  {"type":"event","name":"FeeUpdated","anonymous":false,"inputs":[
    {"name":"oldFee","type":"uint256","indexed":false},
    {"name":"newFee","type":"uint256","indexed":false}]},
  {"type":"error","name":"InsufficientFee","inputs":[]}
]`

const tokenFactoryV4JSON = `[
  {"type":"function","name":"createToken","stateMutability":"payable",
   "inputs":[{"name":"name","type":"string"},{"name":"symbol","type":"string"},{"name":"decimals","type":"uint8"},{"name":"totalSupply","type":"uint256"}],
   "outputs":[{"name":"token","type":"address"}]},
  {"type":"function","name":"creationFee","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"TokenDeployed","anonymous":false,"inputs":[
    {"name":"token","type":"address","indexed":true},
    {"name":"creator","type":"address","indexed":true},
    {"name":"totalSupply","type":"uint256","indexed":false}]},
  {"type":"error","name":"InsufficientFee","inputs":[]}
]`

const lendingFactoryJSON = `[
  {"type":"function","name":"createPool","stateMutability":"payable",
   "inputs":[{"name":"asset","type":"address"},{"name":"collateralFactorBps","type":"uint256"},{"name":"reserveFactorBps","type":"uint256"}],
   "outputs":[{"name":"pool","type":"address"}]},
  {"type":"function","name":"poolCreationFee","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getPool","stateMutability":"view","inputs":[{"name":"asset","type":"address"}],"outputs":[{"name":"","type":"address"}]},
  {"type":"event","name":"PoolCreated","anonymous":false,"inputs":[
    {"name":"pool","type":"address","indexed":true},
    {"name":"asset","type":"address","indexed":true},
    {"name":"creator","type":"address","indexed":true},
    {"name":"collateralFactorBps","type":"uint256","indexed":false},
    {"name":"reserveFactorBps","type":"uint256","indexed":false}]},
  {"type":"error","name":"PoolAlreadyExists","inputs":[]},
  {"type":"error","name":"InvalidAsset","inputs":[]},
  {"type":"error","name":"InvalidCollateralFactor","inputs":[]},
  {"type":"error","name":"InvalidReserveFactor","inputs":[]},
  {"type":"error","name":"InsufficientFee","inputs":[]},
  {"type":"error","name":"NotOwner","inputs":[]}
]`

// Amoy factories predate decimals support and emit an unindexed event.
const amoyTokenFactoryJSON = `[
  {"type":"function","name":"createToken","stateMutability":"payable",
   "inputs":[{"name":"name","type":"string"},{"name":"symbol","type":"string"},{"name":"totalSupply","type":"uint256"}],
   "outputs":[{"name":"token","type":"address"}]},
  {"type":"event","name":"TokenCreated","anonymous":false,"inputs":[
    {"name":"tokenAddress","type":"address","indexed":false},
    {"name":"owner","type":"address","indexed":false}]}
]`
